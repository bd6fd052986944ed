// Utilities for pulling Plex credentials out of a "Copy as cURL" command.
package shared

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlURLRegex    = regexp.MustCompile(`(?:^|\s)'?"?(https?://[^\s'"]+)`)
)

// CurlRequest is the request line and headers recovered from a cURL command.
type CurlRequest struct {
	URL     string
	Headers map[string]string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts the request.
func ParseCurlFile(path string) (*CurlRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(string(content))
}

// ParseCurlCommand parses a cURL command string copied from a browser's network panel.
func ParseCurlCommand(cmd string) (*CurlRequest, error) {
	cmd = strings.ReplaceAll(cmd, "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	req := &CurlRequest{Headers: make(map[string]string)}

	for _, match := range curlHeaderRegex.FindAllStringSubmatch(cmd, -1) {
		line := match[1]
		if line == "" {
			line = match[2]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		req.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if m := curlURLRegex.FindStringSubmatch(cmd); len(m) > 1 {
		req.URL = m[1]
	}

	if req.URL == "" && len(req.Headers) == 0 {
		return nil, fmt.Errorf("%w: no url or headers found in curl command", ErrInvalidInput)
	}
	return req, nil
}

// PlexToken returns the X-Plex-Token carried by the request, from a header or the query string.
func (c *CurlRequest) PlexToken() (string, error) {
	for key, value := range c.Headers {
		if strings.EqualFold(key, "X-Plex-Token") && value != "" {
			return value, nil
		}
	}
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil {
			if token := u.Query().Get("X-Plex-Token"); token != "" {
				return token, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no X-Plex-Token in curl command", ErrMissingCredentials)
}

// ServerURL returns the scheme and host of the request, e.g. "http://192.168.1.10:32400".
func (c *CurlRequest) ServerURL() string {
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
