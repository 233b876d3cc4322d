package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"spicywod/internal/middleware"
	"spicywod/internal/scoring"

	"github.com/gin-gonic/gin"
)

var errMalformedBody = errors.New("malformed request body")

// parseRequest reads a form-encoded, multipart or JSON body into one
// key/value view so handlers do not care which one the client sent.
func parseRequest(c *gin.Context) (scoring.Input, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, middleware.MaxBodyBytes)

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body map[string]any
		decoder := json.NewDecoder(c.Request.Body)
		decoder.UseNumber()
		if err := decoder.Decode(&body); err != nil {
			if errors.Is(err, io.EOF) {
				return scoring.Input{}, nil
			}
			return nil, errMalformedBody
		}
		return scoring.InputFromMap(body)
	}

	if err := c.Request.ParseMultipartForm(middleware.MaxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, errMalformedBody
	}
	return scoring.InputFromValues(c.Request.PostForm), nil
}

// readInput parses the body and answers 400 itself when it cannot.
func readInput(c *gin.Context) (scoring.Input, bool) {
	in, err := parseRequest(c)
	if err != nil {
		var validationErr *scoring.ValidationError
		if errors.As(err, &validationErr) {
			respondError(c, err)
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed request body"})
		}
		return nil, false
	}
	return in, true
}

// listValue returns every value of key, splitting comma-separated entries.
func listValue(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// optionalInt parses key when present. Values below min are rejected with message.
func optionalInt(in scoring.Input, key string, min int, message string, fields fieldErrors) *int {
	raw := in.Get(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		fields[key] = message
		return nil
	}
	return &n
}
