package ssh

// Config holds SSH/SFTP configuration
type Config struct {
	Host          string `json:"host"`
	Port          int    `json:"port"` // Default: 22
	User          string `json:"user"`
	Password      string `json:"password,omitempty"`
	KeyPath       string `json:"key_path,omitempty"`
	KeyPassphrase string `json:"key_passphrase,omitempty"`
	RemotePath    string `json:"remote_path"` // Base directory on the remote host
}
