package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/williamokano/site_backuper/pkg/storage"
)

type Store struct {
	name       string
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	remotePath string
}

func init() {
	storage.RegisterStore("ssh", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return New(cfg)
	})
}

// New creates a new SSH/SFTP store
func New(cfg storage.Config) (*Store, error) {
	sshCfg, err := parseConfig(cfg.Options)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            sshCfg.User,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: Add host key verification
		Timeout:         30 * time.Second,
	}

	if sshCfg.Password != "" {
		clientConfig.Auth = append(clientConfig.Auth, ssh.Password(sshCfg.Password))
	}

	if sshCfg.KeyPath != "" {
		key, err := os.ReadFile(sshCfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key: %w", err)
		}

		var signer ssh.Signer
		if sshCfg.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(sshCfg.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}

		clientConfig.Auth = append(clientConfig.Auth, ssh.PublicKeys(signer))
	}

	if sshCfg.Port == 0 {
		sshCfg.Port = 22
	}

	addr := fmt.Sprintf("%s:%d", sshCfg.Host, sshCfg.Port)
	sshClient, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, storage.WrapError(cfg.Name, "connect", storage.ErrConnFailed)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, storage.WrapError(cfg.Name, "sftp init", err)
	}

	if err := sftpClient.MkdirAll(sshCfg.RemotePath); err != nil {
		sftpClient.Close()
		sshClient.Close()
		return nil, storage.WrapError(cfg.Name, "mkdir", err)
	}

	return &Store{
		name:       cfg.Name,
		sshClient:  sshClient,
		sftpClient: sftpClient,
		remotePath: sshCfg.RemotePath,
	}, nil
}

func (s *Store) Name() string { return s.name }
func (s *Store) Type() string { return "ssh" }

// Put uploads a local file over SFTP
func (s *Store) Put(ctx context.Context, sourcePath, key string) error {
	return storage.WithRetry(ctx, storage.DefaultRetryConfig(), func() error {
		source, err := os.Open(sourcePath)
		if err != nil {
			return err
		}
		defer source.Close()

		remoteFull := path.Join(s.remotePath, key)
		if err := s.sftpClient.MkdirAll(path.Dir(remoteFull)); err != nil {
			return storage.WrapError(s.name, "upload", err)
		}

		dest, err := s.sftpClient.Create(remoteFull)
		if err != nil {
			return storage.WrapError(s.name, "upload", err)
		}
		defer dest.Close()

		if _, err := io.Copy(dest, source); err != nil {
			s.sftpClient.Remove(remoteFull)
			return storage.WrapError(s.name, "upload", err)
		}

		return nil
	})
}

// Get downloads an object over SFTP to destPath
func (s *Store) Get(ctx context.Context, key, destPath string) error {
	return storage.WithRetry(ctx, storage.DefaultRetryConfig(), func() error {
		remoteFull := path.Join(s.remotePath, key)

		source, err := s.sftpClient.Open(remoteFull)
		if err != nil {
			if os.IsNotExist(err) {
				return storage.WrapError(s.name, "download", storage.ErrNotFound)
			}
			return storage.WrapError(s.name, "download", err)
		}
		defer source.Close()

		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return storage.WrapError(s.name, "download", err)
		}

		dest, err := os.Create(destPath)
		if err != nil {
			return storage.WrapError(s.name, "download", err)
		}
		defer dest.Close()

		if _, err := io.Copy(dest, source); err != nil {
			os.Remove(destPath)
			return storage.WrapError(s.name, "download", err)
		}

		return nil
	})
}

// List walks the remote base directory and returns objects under prefix
func (s *Store) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var objects []storage.ObjectInfo

	walker := s.sftpClient.Walk(s.remotePath)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return nil, storage.WrapError(s.name, "list", err)
		}

		info := walker.Stat()
		if info == nil || info.IsDir() {
			continue
		}

		rel, err := filepath.Rel(s.remotePath, walker.Path())
		if err != nil {
			continue
		}

		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		objects = append(objects, storage.ObjectInfo{
			Key:     key,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Key < objects[j].Key
	})

	return objects, nil
}

// Stat returns metadata about an object
func (s *Store) Stat(ctx context.Context, key string) (*storage.ObjectInfo, error) {
	remoteFull := path.Join(s.remotePath, key)

	info, err := s.sftpClient.Stat(remoteFull)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, storage.WrapError(s.name, "stat", err)
	}

	return &storage.ObjectInfo{
		Key:     key,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// BucketExists reports whether the remote base directory exists
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	info, err := s.sftpClient.Stat(s.remotePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, storage.WrapError(s.name, "bucket check", err)
	}
	return info.IsDir(), nil
}

// Close tears down the SFTP and SSH sessions
func (s *Store) Close() error {
	if s.sftpClient != nil {
		s.sftpClient.Close()
	}
	if s.sshClient != nil {
		return s.sshClient.Close()
	}
	return nil
}

func parseConfig(options map[string]interface{}) (*Config, error) {
	cfg := &Config{}

	if v, ok := options["host"].(string); ok {
		cfg.Host = v
	} else {
		return nil, fmt.Errorf("%w: missing required option: host", storage.ErrInvalidConfig)
	}
	if v, ok := options["user"].(string); ok {
		cfg.User = v
	} else {
		return nil, fmt.Errorf("%w: missing required option: user", storage.ErrInvalidConfig)
	}
	if v, ok := options["remote_path"].(string); ok {
		cfg.RemotePath = v
	} else {
		return nil, fmt.Errorf("%w: missing required option: remote_path", storage.ErrInvalidConfig)
	}
	if v, ok := options["port"].(float64); ok {
		cfg.Port = int(v)
	}
	if v, ok := options["password"].(string); ok {
		cfg.Password = v
	}
	if v, ok := options["key_path"].(string); ok {
		cfg.KeyPath = v
	}
	if v, ok := options["key_passphrase"].(string); ok {
		cfg.KeyPassphrase = v
	}

	return cfg, nil
}
