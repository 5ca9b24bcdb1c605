package labclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/splunklabhq/splunklab/backend/services/auth"
	"github.com/splunklabhq/splunklab/backend/services/types"
)

const testSigningSecret = "test-secret"

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := &Client{
		BaseURL:       server.URL,
		SigningSecret: testSigningSecret,
	}
	if err := client.Initialize(); err != nil {
		t.Fatalf("Initialize errored: %s", err)
	}
	return client, server
}

func TestInstances(t *testing.T) {
	want := []Instance{
		{ID: "i-1", Name: "sh-alpha", Region: "us-east-1", State: StateRunning, ServiceType: "Splunk"},
		{ID: "i-2", Name: "idx-bravo", Region: "us-east-1", State: StateStopped, ServiceType: "Splunk"},
	}

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances" {
			t.Errorf("expected path /instances, got %s", r.URL.Path)
		}
		if r.Header.Get("x-user-email") != "user@example.com" {
			t.Errorf("expected x-user-email header, got %q", r.Header.Get("x-user-email"))
		}
		if got := r.Header.Get("x-request-id"); len(got) != 16 {
			t.Errorf("expected a 16-char x-request-id, got %q", got)
		}

		// The bearer must verify against the shared secret and carry the
		// caller's email as subject.
		bearer := r.Header.Get("Authorization")
		if len(bearer) < 8 {
			t.Fatalf("missing bearer header")
		}
		email, err := auth.VerifyProxyToken(types.AccessToken(bearer[len("Bearer "):]), testSigningSecret)
		if err != nil {
			t.Errorf("bearer did not verify: %s", err)
		}
		if email != "user@example.com" {
			t.Errorf("bearer subject mismatch: %s", email)
		}

		json.NewEncoder(w).Encode(want)
	})

	got, err := client.Instances(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("Instances errored: %s", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("instance list mismatch (-want +got):\n%s", diff)
	}
}

func TestInstanceAction(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"ack": true}`))
	})

	err := client.InstanceAction(context.Background(), "user@example.com", "reboot", "i-1", "us-east-1")
	if err != nil {
		t.Fatalf("InstanceAction errored: %s", err)
	}
	if gotPath != "/reboot" {
		t.Errorf("expected path /reboot, got %s", gotPath)
	}
	if gotBody["instance_id"] != "i-1" || gotBody["region"] != "us-east-1" {
		t.Errorf("unexpected request body: %v", gotBody)
	}
}

func TestInstanceActionUnknown(t *testing.T) {
	client := &Client{BaseURL: "http://localhost", SigningSecret: testSigningSecret}
	if err := client.Initialize(); err != nil {
		t.Fatalf("Initialize errored: %s", err)
	}

	if err := client.InstanceAction(context.Background(), "user@example.com", "terminate", "i-1", "us-east-1"); err == nil {
		t.Error("expected an error for an unknown action")
	}
}

func TestCheckUserLab(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hasLab": true}`))
	})

	hasLab, err := client.CheckUserLab(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("CheckUserLab errored: %s", err)
	}
	if !hasLab {
		t.Error("expected hasLab to be true")
	}
}

func TestValidateLicenseFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"valid": false, "message": "license expired"}`))
	})

	err := client.ValidateLicense(context.Background(), ClusterRequest{
		InstanceIDs: []types.InstanceID{"i-1"},
		Region:      "us-east-1",
		UserEmail:   "user@example.com",
	})
	if err == nil {
		t.Error("expected an error when the license is invalid")
	}
}

func TestUpstreamErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	})

	if _, err := client.Instances(context.Background(), "user@example.com"); err == nil {
		t.Error("expected an error on a non-2xx upstream status")
	}
}
