// Gói cfg cung cấp cấu hình cho cataloguer.
// Loader là interface để nạp cấu hình từ nhiều nguồn khác nhau.
package cfg

import (
	"sync"
)

var (
	loader     Loader
	loaderOnce sync.Once
)

type Loader interface {
	Load() (*Config, error)
}

func NewLoader(l Loader) (Loader, error) {
	loaderOnce.Do(func() {
		loader = l
	})
	return loader, nil
}
