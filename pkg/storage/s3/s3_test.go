package s3

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://logs/2024/app.log", "logs", "2024/app.log", false},
		{"s3://bucket/a.xml", "bucket", "a.xml", false},
		{"s3://bucket", "", "", true},
		{"s3:///key", "", "", true},
		{"http://bucket/key", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Errorf("Expected %s/%s, got %s/%s", tt.bucket, tt.key, bucket, key)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("eu-west-1")
	if cfg.Region != "eu-west-1" {
		t.Errorf("Expected region eu-west-1, got %s", cfg.Region)
	}
	if cfg.DownloadTimeout <= 0 || cfg.OperationTimeout <= 0 {
		t.Error("Expected positive timeouts")
	}
}
