package azure

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewOpenAIClient(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		endpoint   string
		apiKey     string
		deployment string
		wantErr    bool
	}{
		{
			name:       "valid configuration",
			endpoint:   "https://test.openai.azure.com/",
			apiKey:     "test-key",
			deployment: "gpt-4o",
			wantErr:    false,
		},
		{
			name:       "missing endpoint",
			endpoint:   "",
			apiKey:     "test-key",
			deployment: "gpt-4o",
			wantErr:    true,
		},
		{
			name:       "missing api key",
			endpoint:   "https://test.openai.azure.com/",
			apiKey:     "",
			deployment: "gpt-4o",
			wantErr:    true,
		},
		{
			name:       "missing deployment",
			endpoint:   "https://test.openai.azure.com/",
			apiKey:     "test-key",
			deployment: "",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewOpenAIClient(tt.endpoint, tt.apiKey, tt.deployment, logger)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewOpenAIClient() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && client.Deployment() != tt.deployment {
				t.Errorf("deployment = %v, want %v", client.Deployment(), tt.deployment)
			}
		})
	}
}

func TestOpenAIClient_Complete_EmptyPrompt(t *testing.T) {
	client, err := NewOpenAIClient("https://test.openai.azure.com/", "test-key", "gpt-4o", zap.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	if _, err := client.Complete(context.Background(), "system", ""); err == nil {
		t.Error("Complete() with empty user prompt should return error")
	}
}

func TestOpenAIClient_Complete_ContextCancellation(t *testing.T) {
	client, err := NewOpenAIClient("https://test.openai.azure.com/", "test-key", "gpt-4o", zap.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Complete(ctx, "", "check warfarin and aspirin")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Complete() error = %v, want context.Canceled", err)
	}
}

func TestOpenAIClient_Complete_Timeout(t *testing.T) {
	client, err := NewOpenAIClient("https://test.openai.azure.com/", "test-key", "gpt-4o", zap.NewNop())
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(10 * time.Millisecond)

	_, err = client.Complete(ctx, "", "check warfarin and aspirin")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Complete() error = %v, want context.DeadlineExceeded", err)
	}
}
