// Package config holds the small set of knobs the storage engine needs:
// where its files live on disk and how many frames the buffer pool gets.
package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
)

// PageSize is the fixed page size mandated by the on-disk format (§3/§6).
// Every table file, the title index file and the temp projection file use
// this page size; it is not configurable.
const PageSize = 4096

// Known file names, bound by convention rather than by the core (§6).
const (
	MoviesFile           = "imdb_movies.bin"
	WorkedOnFile         = "imdb_workedon.bin"
	PeopleFile           = "imdb_people.bin"
	TitleIndexFile       = "imdb_title_index.bin"
	TempFilteredWorkedOn = "imdb_temp_filtered_workedon.bin"
)

// DBConfig holds basic configuration for the engine.
type DBConfig struct {
	DBPath        string `json:"dbpath"`
	BMBufferCount int    `json:"bm_buffercount"`
}

// NewDBConfig constructs an instance from an on-disk path with a default
// buffer pool size.
func NewDBConfig(dbpath string) *DBConfig {
	return &DBConfig{DBPath: dbpath, BMBufferCount: 16}
}

// NewDBConfigWithBufferSize constructs a DBConfig with an explicit buffer
// pool size (number of frames).
func NewDBConfigWithBufferSize(dbpath string, bufferCount int) *DBConfig {
	return &DBConfig{DBPath: dbpath, BMBufferCount: bufferCount}
}

// LoadDBConfig loads configuration from a text file. The loader accepts
// either JSON (e.g. {"dbpath":"./DB"}) or a simple key=value format
// (e.g. dbpath = '../DB').
func LoadDBConfig(filePath string) (*DBConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty config file")
	}

	var c DBConfig
	if err := json.Unmarshal(data, &c); err == nil && c.DBPath != "" {
		if c.BMBufferCount == 0 {
			c.BMBufferCount = 16
		}
		return &c, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sep := "="
		if !strings.Contains(line, "=") && strings.Contains(line, ":") {
			sep = ":"
		}
		parts := strings.SplitN(line, sep, 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		switch key {
		case "dbpath":
			c.DBPath = val
		case "bm_buffercount":
			if v, err := strconv.Atoi(val); err == nil {
				c.BMBufferCount = v
			}
		}
	}
	if c.DBPath == "" {
		return nil, errors.New("dbpath not found in config")
	}
	if c.BMBufferCount == 0 {
		c.BMBufferCount = 16
	}
	return &c, nil
}
