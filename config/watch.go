package config

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the .env file and invokes onChange with a freshly loaded
// Config whenever it is written. Used to hot-swap the log level without a
// restart. The returned close function releases the watcher.
func Watch(envPath string, onChange func(*Config)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// fsnotify 监听目录比监听单个文件更可靠（编辑器常用 rename 覆盖写入）
	dir := filepath.Dir(envPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(envPath)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					log.Printf("配置文件变更: %s, 重新加载", event.Name)
					onChange(Load())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("配置监听错误: %v", err)
			}
		}
	}()

	return watcher.Close, nil
}
