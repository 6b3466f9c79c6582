package backblaze

// Config holds Backblaze B2 configuration
type Config struct {
	AccountID      string `json:"account_id"`      // B2 application key ID
	ApplicationKey string `json:"application_key"` // B2 application key
	BucketName     string `json:"bucket_name"`     // B2 bucket name
}
