package models

// Tag is one name/value pair attached to a stored payload. Tags are kept as
// an ordered slice because storage networks preserve their order.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StorageReceipt is the content-addressed identifier returned by the bundler.
type StorageReceipt struct {
	ID                    string
	ConfirmedAtSubmission bool
}

// EncryptionMaterial is the exported key and nonce of one encrypted file,
// both base64.
type EncryptionMaterial struct {
	Key   string
	Nonce string
}
