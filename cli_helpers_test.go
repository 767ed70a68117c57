package main

import (
	"bytes"
	"testing"
)

// useBufferWriters 在测试期间将 stdOut/stdErr 替换为内存缓冲区，结束后恢复。
func useBufferWriters(t *testing.T) {
	t.Helper()

	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = &bytes.Buffer{}, &bytes.Buffer{}

	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
}

func stdOutBuffer() *bytes.Buffer {
	buf, _ := stdOut.(*bytes.Buffer)
	return buf
}

func stdErrBuffer() *bytes.Buffer {
	buf, _ := stdErr.(*bytes.Buffer)
	return buf
}
