package vm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/daimatz/invokergen/pkg/classfile"
)

// ClassLoader loads .class files by class name.
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// UserClassLoader loads user classes from the classpath, delegating to the
// parent first. ClassPath may list several directories separated by the
// OS path list separator.
type UserClassLoader struct {
	ClassPath string
	Parent    ClassLoader

	mu    sync.Mutex
	Cache map[string]*classfile.ClassFile
}

// NewUserClassLoader creates a new UserClassLoader. parent may be nil.
func NewUserClassLoader(classPath string, parent ClassLoader) *UserClassLoader {
	return &UserClassLoader{
		ClassPath: classPath,
		Parent:    parent,
		Cache:     make(map[string]*classfile.ClassFile),
	}
}

func (cl *UserClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	cl.mu.Lock()
	cf, ok := cl.Cache[name]
	cl.mu.Unlock()
	if ok {
		return cf, nil
	}
	if cl.Parent != nil {
		if cf, err := cl.Parent.LoadClass(name); err == nil {
			return cf, nil
		}
	}

	for _, dir := range filepath.SplitList(cl.ClassPath) {
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		cf, err := classfile.ParseFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("user: class %s: %w", name, err)
		}
		cl.mu.Lock()
		cl.Cache[name] = cf
		cl.mu.Unlock()
		return cf, nil
	}
	return nil, fmt.Errorf("user: class %s not found in %s: %w", name, cl.ClassPath, ErrClassNotFound)
}

// DirExists reports whether every classpath entry is an existing directory.
func (cl *UserClassLoader) DirExists() error {
	for _, dir := range filepath.SplitList(cl.ClassPath) {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("classpath: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("classpath: %s is not a directory", dir)
		}
	}
	return nil
}
