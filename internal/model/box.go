package model

// EncryptedBox is an AES-256-GCM ciphertext with its nonce.
type EncryptedBox struct {
	EncryptionType int    `json:"encryptionType"`
	IVHex          string `json:"iv_hex"`
	DataBase64     string `json:"data_base64"`
}

// Snrp holds scrypt parameters and salt.
type Snrp struct {
	SaltHex string `json:"salt_hex"`
	N       int    `json:"n"`
	R       int    `json:"r"`
	P       int    `json:"p"`
}
