package httputils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/splunklabhq/splunklab/backend/services/types"
)

func TestGetAccessToken(t *testing.T) {
	var tests = []struct {
		name, header, expected string
		err                    bool
	}{
		{"Valid Authorization header", "Bearer test_valid_token", "test_valid_token", false},
		{"Malformed Authorization header", "test_malformed_token", "", true},
		{"Empty Authorization header", "", "", true},
		{"Undefined Authorization header", "Bearer undefined", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "https://localhost", nil)
			r.Header.Add("Authorization", tt.header)
			token, err := GetAccessToken(r)
			if err != nil && !tt.err {
				t.Errorf("did not expect error, got: %s", err)
			}

			if token != tt.expected {
				t.Errorf("expected token to be %s, got %s", tt.expected, token)
			}
		})
	}
}

func TestGetUserEmail(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "https://localhost/instances", nil)
	if _, err := GetUserEmail(r); err == nil {
		t.Error("expected an error with no x-user-email header")
	}

	r.Header.Set("x-user-email", "user@example.com")
	email, err := GetUserEmail(r)
	if err != nil {
		t.Fatalf("did not expect error, got: %s", err)
	}
	if string(email) != "user@example.com" {
		t.Errorf("expected user@example.com, got %s", email)
	}
}

func TestParseRequest(t *testing.T) {
	var tests = []struct {
		name     string
		request  ServerRequest
		jsonBody string
		expected ServerRequest
	}{
		{"Valid action request", &InstanceActionRequest{}, `{
			"action": "start",
			"instance_id": "i-0abc123",
			"region": "us-east-1"
		}`, &InstanceActionRequest{
			Action:     "start",
			InstanceID: "i-0abc123",
			Region:     "us-east-1",
		}},
		{"Valid bulk request", &BulkActionRequest{}, `{
			"action": "stop",
			"instance_ids": ["i-1", "i-2", "i-3"],
			"region": "us-east-1"
		}`, &BulkActionRequest{
			Action:      "stop",
			InstanceIDs: []types.InstanceID{"i-1", "i-2", "i-3"},
			Region:      "us-east-1",
		}},
		{"Empty action request", &InstanceActionRequest{}, `{}`, &InstanceActionRequest{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.NewReader(tt.jsonBody)
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "https://localhost", body)

			_, err := ParseRequest(w, r, tt.request)
			if err != nil {
				t.Errorf("did not expect error, got: %s", err)
			}

			// The result chan is created by ParseRequest and not part of the
			// comparison.
			switch req := tt.request.(type) {
			case *InstanceActionRequest:
				if req.ResultChan == nil {
					t.Error("expected result channel to be created")
				}
				req.ResultChan = nil
			case *BulkActionRequest:
				if req.ResultChan == nil {
					t.Error("expected result channel to be created")
				}
				req.ResultChan = nil
			}

			if diff := cmp.Diff(tt.expected, tt.request); diff != "" {
				t.Errorf("parsed request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVerifyRequestType(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "https://localhost/instances", nil)

	if err := VerifyRequestType(w, r, http.MethodPost); err == nil {
		t.Error("expected an error for a GET request on a POST endpoint")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %v, got %v", http.StatusBadRequest, w.Code)
	}

	w = httptest.NewRecorder()
	if err := VerifyRequestType(w, r, http.MethodGet); err != nil {
		t.Errorf("did not expect error, got: %s", err)
	}
}
