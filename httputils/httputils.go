package httputils // import "github.com/splunklabhq/splunklab/backend/services/httputils"

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/splunklabhq/splunklab/backend/services/auth"
	"github.com/splunklabhq/splunklab/backend/services/metadata"
	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// A ServerRequest represents a request from the dashboard --- it is exported
// so that we can implement the top-level event handlers in parent packages.
// They simply return the result and any error message via ReturnResult.
type ServerRequest interface {
	ReturnResult(result interface{}, err error)
	CreateResultChan()
}

// A RequestResult represents the result of a request that was successfully
// authenticated, parsed, and processed by the consumer.
type RequestResult struct {
	Result interface{} `json:"-"`
	Err    error       `json:"error"`
}

// Send is called to send an HTTP response
func (r RequestResult) Send(w http.ResponseWriter) {
	var buf []byte
	var err error
	var status int

	if r.Err != nil {
		// Send a 406
		status = http.StatusNotAcceptable
		buf, err = json.Marshal(
			struct {
				Result interface{} `json:"result"`
				Error  string      `json:"error"`
			}{r.Result, r.Err.Error()},
		)
	} else {
		// Send a 200 code
		status = http.StatusOK
		buf, err = json.Marshal(
			struct {
				Result interface{} `json:"result"`
			}{r.Result},
		)
	}

	w.WriteHeader(status)
	if err != nil {
		logger.Errorf("error marshalling a %v HTTP Response body: %s", status, err)
	}
	_, _ = w.Write(buf)
}

// Helper functions

// GetAccessToken is a helper function that extracts the access token from the
// request "Authorization" header.
func GetAccessToken(r *http.Request) (string, error) {
	authorization := r.Header.Get("Authorization")
	bearer := strings.Split(authorization, "Bearer ")

	if len(bearer) <= 1 || bearer[1] == "" || bearer[1] == "undefined" {
		return "", utils.MakeError("bearer token is empty on request to URL %s", r.URL)
	}

	return bearer[1], nil
}

// GetUserEmail extracts the caller identity from the `x-user-email` header
// the dashboard sends on every proxy request.
func GetUserEmail(r *http.Request) (types.UserEmail, error) {
	email := r.Header.Get("x-user-email")
	if email == "" {
		return "", utils.MakeError("missing x-user-email header on request to URL %s", r.URL)
	}
	return types.UserEmail(email), nil
}

// AuthenticateUser verifies that the access token is valid and that it was
// issued for the email carried in `x-user-email`. Used directly by endpoints
// that carry no request body.
func AuthenticateUser(w http.ResponseWriter, r *http.Request) (types.UserEmail, error) {
	email, err := GetUserEmail(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", err
	}

	// Skip token validation if running on local environment
	if !metadata.IsLocalEnv() {
		accessToken, err := GetAccessToken(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return "", err
		}

		claims, err := auth.ParseToken(accessToken)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return "", utils.MakeError("received an unpermissioned request on %s to URL %s: %s", r.Host, r.URL, err)
		}

		if claims.UserEmail != string(email) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return "", utils.MakeError("x-user-email %s does not match token subject %s on URL %s", email, claims.UserEmail, r.URL)
		}
	}

	return email, nil
}

// AuthenticateRequest will verify the caller identity like AuthenticateUser,
// and additionally parse the request body and try to unmarshal it into a
// `ServerRequest` type.
func AuthenticateRequest(w http.ResponseWriter, r *http.Request, s ServerRequest) (types.UserEmail, error) {
	email, err := AuthenticateUser(w, r)
	if err != nil {
		return "", err
	}

	if _, err := ParseRequest(w, r, s); err != nil {
		return "", utils.MakeError("error while parsing request: %s", err)
	}

	return email, nil
}

// ParseRequest will read the request body, unmarshal into a raw JSON map, and
// then unmarshal the fields into the struct `s`. The raw map is returned so
// callers can inspect fields the concrete type doesn't declare.
func ParseRequest(w http.ResponseWriter, r *http.Request, s ServerRequest) (map[string]*json.RawMessage, error) {
	// Get body of request
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Malformed body", http.StatusBadRequest)
		return nil, utils.MakeError("error getting body from request on %s to URL %s: %s", r.Host, r.URL, err)
	}

	var rawmap map[string]*json.RawMessage
	err = json.Unmarshal(body, &rawmap)
	if err != nil {
		http.Error(w, "Malformed body", http.StatusBadRequest)
		return nil, utils.MakeError("error raw-unmarshalling JSON body sent on %s to URL %s: %s", r.Host, r.URL, err)
	}

	// Now, actually do the unmarshalling into the right object type
	err = json.Unmarshal(body, s)
	if err != nil {
		http.Error(w, "Malformed body", http.StatusBadRequest)
		return nil, utils.MakeError("could not fully unmarshal the body of a request sent on %s to URL %s: %s", r.Host, r.URL, err)
	}

	// Set up the result channel
	s.CreateResultChan()

	return rawmap, nil
}

// VerifyRequestType verifies the type (method) of a request.
func VerifyRequestType(w http.ResponseWriter, r *http.Request, method string) error {
	if r == nil {
		err := utils.MakeError("received a nil request expecting to be type %s", method)
		logger.Error(err)

		http.Error(w, utils.Sprintf("Bad request. Expected %s, got nil", method), http.StatusBadRequest)

		return err
	}

	if r.Method != method {
		err := utils.MakeError("received a request on %s to URL %s of type %s, but it should have been type %s", r.Host, r.URL, r.Method, method)
		logger.Error(err)

		http.Error(w, utils.Sprintf("Bad request type. Expected %s, got %s", method, r.Method), http.StatusBadRequest)

		return err
	}
	return nil
}
