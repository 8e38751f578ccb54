package boxsdk

// RemoteFile is one entry of the server's recursive file listing.
// Mtime is unix seconds with sub-second precision. Hash is the sha256 hex
// digest of the content when the server has one cached, else empty.
type RemoteFile struct {
	Path  string  `json:"path"`
	Mtime float64 `json:"mtime"`
	Hash  string  `json:"hash,omitempty"`
}

// StorageInfo reports account storage usage in bytes.
type StorageInfo struct {
	UsedBytes  int64 `json:"used_bytes"`
	LimitBytes int64 `json:"limit_bytes"`
}
