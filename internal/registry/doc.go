// Package registry 维护数据集家族（Family）与其远端文件描述（Descriptor）的不可变目录。
//
// 每个 Family 描述：
//  1. 一组需要从远端获取的归档文件，附带期望的 SHA-256；
//  2. 本地缓存目录名；
//  3. 以 train/test 等名称划分的 Split，将图像文件与标签文件配对。
//
// 内置家族在 init() 中注册，配置层可以基于已注册家族覆盖镜像地址与缓存目录。
package registry
