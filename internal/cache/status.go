package cache

// Status 描述单个描述文件在缓存中的状态。
type Status int

const (
	// Missing 既没有原始归档也没有解压后的文件。
	Missing Status = iota
	// CachedRaw 原始归档（如 *.gz）存在。
	CachedRaw
	// CachedDecoded 仅存在去掉扩展名后的解压文件。
	CachedDecoded
)

func (s Status) String() string {
	switch s {
	case CachedRaw:
		return "cached_raw"
	case CachedDecoded:
		return "cached_decoded"
	default:
		return "missing"
	}
}

// Cached 表示该文件无需再次下载。
func (s Status) Cached() bool {
	return s != Missing
}
