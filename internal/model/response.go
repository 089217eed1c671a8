package model

// UploadManifest describes what the consumer did with a task. It travels as
// the "manifest" part of the result upload, canonically encoded.
type UploadManifest struct {
	Version           string       `json:"version"`
	RunID             string       `json:"runId"`
	CompletedAt       string       `json:"completedAt"`
	DocumentSHA256    string       `json:"documentSha256"`
	BioSigns          []SignerInfo `json:"bioSigns"`
	EncryptedPayloads bool         `json:"encryptedPayloads"`
	Timestamped       bool         `json:"timestamped"`
	CryptoSigned      bool         `json:"cryptoSigned"`
	Operator          *SignerInfo  `json:"operator,omitempty"` // completion signer
	Client            ClientInfo   `json:"client"`
}

type ClientInfo struct {
	App     string `json:"app"`
	Version string `json:"version"`
	OS      string `json:"os"`
}

type SubmitReceipt struct {
	Status     string `json:"status"`
	ReceiptID  string `json:"receiptId"`
	ReceivedAt string `json:"receivedAt"`
}
