package registry

import (
	"fmt"
	"sort"
	"strings"
)

// Split 将同一划分下的图像文件与标签文件配对，字段保存 Descriptor.Name。
type Split struct {
	Images string `json:"images"`
	Labels string `json:"labels"`
}

// Family 是一组共享缓存目录的远端文件。Files 保持声明顺序。
type Family struct {
	Key         string           `json:"key"`
	Description string           `json:"description"`
	CacheDir    string           `json:"cache_dir"`
	Files       []Descriptor     `json:"files"`
	Splits      map[string]Split `json:"splits"`
}

// Descriptor 按文件名查找描述。
func (f Family) Descriptor(name string) (Descriptor, bool) {
	for _, d := range f.Files {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Split 返回指定划分，名称大小写不敏感。
func (f Family) Split(name string) (Split, bool) {
	s, ok := f.Splits[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// SplitNames 返回排序后的划分名称。
func (f Family) SplitNames() []string {
	names := make([]string, 0, len(f.Splits))
	for name := range f.Splits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SplitFiles 返回某个划分涉及的描述，顺序为 images, labels。
func (f Family) SplitFiles(name string) ([]Descriptor, error) {
	s, ok := f.Split(name)
	if !ok {
		return nil, fmt.Errorf("family %s: unknown split %q", f.Key, name)
	}
	images, ok := f.Descriptor(s.Images)
	if !ok {
		return nil, fmt.Errorf("family %s: split %s references unknown file %s", f.Key, name, s.Images)
	}
	labels, ok := f.Descriptor(s.Labels)
	if !ok {
		return nil, fmt.Errorf("family %s: split %s references unknown file %s", f.Key, name, s.Labels)
	}
	return []Descriptor{images, labels}, nil
}

// WithLocation 返回一个副本，所有文件改为从 location 获取；空字符串表示不覆盖。
func (f Family) WithLocation(location string) Family {
	out := f.clone()
	if location == "" {
		return out
	}
	if !strings.HasSuffix(location, "/") {
		location += "/"
	}
	for i := range out.Files {
		out.Files[i].Location = location
	}
	return out
}

// WithCacheDir 返回一个使用新缓存目录名的副本；空字符串表示不覆盖。
func (f Family) WithCacheDir(dir string) Family {
	out := f.clone()
	if dir != "" {
		out.CacheDir = dir
	}
	return out
}

func (f Family) clone() Family {
	out := f
	out.Files = append([]Descriptor(nil), f.Files...)
	out.Splits = make(map[string]Split, len(f.Splits))
	for k, v := range f.Splits {
		out.Splits[k] = v
	}
	return out
}

// Validate 检查文件名唯一、摘要合法，以及划分引用的文件均存在。
func (f Family) Validate() error {
	if strings.TrimSpace(f.Key) == "" {
		return fmt.Errorf("family key is required")
	}
	if strings.TrimSpace(f.CacheDir) == "" {
		return fmt.Errorf("family %s: cache dir is required", f.Key)
	}
	if len(f.Files) == 0 {
		return fmt.Errorf("family %s: at least one file is required", f.Key)
	}
	seen := make(map[string]struct{}, len(f.Files))
	for _, d := range f.Files {
		if err := d.validate(); err != nil {
			return fmt.Errorf("family %s: %w", f.Key, err)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("family %s: duplicate file %s", f.Key, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	for name := range f.Splits {
		if _, err := f.SplitFiles(name); err != nil {
			return err
		}
	}
	return nil
}
