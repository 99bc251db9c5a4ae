package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Path points either to a file or to a mongo collection.
type Path struct {
	File string
	DB   string
	Coll string
}

// NewPath parses {fspath} or {db}.{col}. An existing file wins; an empty
// string gives a nil path.
func NewPath(filePathOrColl string) (*Path, error) {
	// 检查filePathOrColl是否作为文件存在
	if _, err := os.Stat(filePathOrColl); err == nil {
		return &Path{
			File: filePathOrColl,
		}, nil
	}
	dbDotColl := strings.TrimSpace(filePathOrColl)
	if dbDotColl == "" {
		return nil, nil
	}
	splitted := strings.Split(dbDotColl, ".")
	if len(splitted) != 2 || splitted[0] == "" || splitted[1] == "" {
		return nil, fmt.Errorf("dbDotColl is invalid: %s", dbDotColl)
	}
	return &Path{
		DB:   splitted[0],
		Coll: splitted[1],
	}, nil
}

func (p *Path) IsFile() bool {
	return p.File != ""
}

func (p *Path) GetDb() string {
	return p.DB
}

func (p *Path) GetColl() string {
	return p.Coll
}

// GetCachePath is absolute for files so that the cache reads them in place.
func (p *Path) GetCachePath() string {
	if p.IsFile() {
		abs, err := filepath.Abs(p.File)
		if err != nil {
			log.Panicf("failed to get abs path of %s: %v", p.File, err)
		}
		return abs
	}
	return p.DB + "." + p.Coll + ".pb"
}

func (p *Path) String() string {
	if p.IsFile() {
		return p.File
	}
	return p.DB + "." + p.Coll
}
