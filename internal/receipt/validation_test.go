package receipt

import (
	"bytes"
	"errors"
	"testing"
)

func TestValidateImage(t *testing.T) {
	small := []byte{0xFF, 0xD8, 0xFF}

	tests := []struct {
		name          string
		data          []byte
		mimeType      string
		wantMediaType string
		wantErr       error
	}{
		{
			name:          "jpeg",
			data:          small,
			mimeType:      "image/jpeg",
			wantMediaType: "image/jpeg",
		},
		{
			name:          "parameters and case are ignored",
			data:          small,
			mimeType:      "Image/PNG; charset=binary",
			wantMediaType: "image/png",
		},
		{
			name:          "exactly at the limit",
			data:          bytes.Repeat([]byte{1}, MaxImageBytes),
			mimeType:      "image/webp",
			wantMediaType: "image/webp",
		},
		{
			name:     "one byte over the limit",
			data:     bytes.Repeat([]byte{1}, MaxImageBytes+1),
			mimeType: "image/webp",
			wantErr:  ErrImageTooLarge,
		},
		{
			name:     "pdf is not an image",
			data:     small,
			mimeType: "application/pdf",
			wantErr:  ErrNotAnImage,
		},
		{
			name:     "missing media type",
			data:     small,
			mimeType: "",
			wantErr:  ErrNotAnImage,
		},
		{
			name:     "bare image prefix",
			data:     small,
			mimeType: "image/",
			wantErr:  ErrNotAnImage,
		},
		{
			name:     "empty payload",
			data:     nil,
			mimeType: "image/png",
			wantErr:  ErrEmptyImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateImage(tt.data, tt.mimeType)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateImage() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, ErrInvalidImage) {
					t.Errorf("ValidateImage() error %v does not match ErrInvalidImage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateImage() unexpected error: %v", err)
			}
			if got != tt.wantMediaType {
				t.Errorf("ValidateImage() = %q, want %q", got, tt.wantMediaType)
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"amount": 1}`, `{"amount": 1}`},
		{"json fence", "```json\n{\"amount\": 1}\n```", `{"amount": 1}`},
		{"bare fence", "```\n{\"amount\": 1}\n```", `{"amount": 1}`},
		{"surrounding prose", "Here you go: {\"amount\": 1} hope it helps", `{"amount": 1}`},
		{"array is left alone", `[1, 2]`, `[1, 2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
