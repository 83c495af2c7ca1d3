package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
	"gopkg.in/yaml.v2"

	"github.com/mikeydub/go-rediscache/service/redis"
)

const composeFileName = "docker-compose.yml"

// N.B. Only the parts of a compose file we read.
type ComposeFile struct {
	Version  string             `yaml:"version"`
	Services map[string]Service `yaml:"services"`
}

type Service struct {
	Image       string   `yaml:"image"`
	Ports       []string `yaml:"ports"`
	Environment []string `yaml:"environment"`
	Command     string   `yaml:"command"`
}

func configureContainerCleanup(config *docker.HostConfig) {
	config.AutoRemove = true
	config.RestartPolicy = docker.RestartPolicy{Name: "no"}
}

func loadComposeFile(path string) (f ComposeFile, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	err = yaml.Unmarshal(data, &f)
	return f, err
}

// findComposeFile walks up from the working directory, since tests run from package directories.
func findComposeFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, composeFileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find %s", composeFileName)
		}
		dir = parent
	}
}

func getImageAndVersion(s string) ([]string, error) {
	imgAndVer := strings.Split(s, ":")
	if len(imgAndVer) != 2 {
		return nil, errors.New("no version specified for image")
	}
	return imgAndVer, nil
}

// StartRedis starts a disposable redis container using the image pinned in the compose file and
// waits until it accepts connections. The caller must Close the returned resource.
func StartRedis() (*dockertest.Resource, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("could not connect to docker: %w", err)
	}
	pool.MaxWait = 3 * time.Minute

	if err := pool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("could not reach docker: %w", err)
	}

	path, err := findComposeFile()
	if err != nil {
		return nil, err
	}
	apps, err := loadComposeFile(path)
	if err != nil {
		return nil, err
	}
	imgAndVer, err := getImageAndVersion(apps.Services["redis"].Image)
	if err != nil {
		return nil, err
	}

	rd, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Repository: imgAndVer[0],
			Tag:        imgAndVer[1],
		}, configureContainerCleanup,
	)
	if err != nil {
		return nil, fmt.Errorf("could not start redis: %w", err)
	}

	addr := rd.GetHostPort("6379/tcp")
	err = pool.Retry(func() error {
		config, err := redis.ParseConfig(addr, "")
		if err != nil {
			return err
		}
		cache := redis.NewCache(context.Background(), config)
		defer cache.Close()
		return cache.Ping(context.Background())
	})
	if err != nil {
		rd.Close()
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}

	return rd, nil
}
