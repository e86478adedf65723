// Command smoketest asks the running chatbot page one question and fails
// when the answer shows a model error.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
)

var errorDetail = regexp.MustCompile(`Error : (.*?)<`)

func main() {
	var (
		base     = flag.String("url", "http://127.0.0.1:8080/", "chatbot page URL")
		question = flag.String("prompt", "what causes cancer?", "question to send")
		timeout  = flag.Duration("timeout", 2*time.Minute, "request timeout")
	)
	flag.Parse()

	if err := run(*base, *question, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "FAILED:", err)
		os.Exit(1)
	}
}

func run(base, question string, timeout time.Duration) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client := &http.Client{Jar: jar, Timeout: timeout}

	fmt.Println("Accessing homepage...")
	if _, err := fetch(client.Get(base)); err != nil {
		return err
	}

	fmt.Printf("Sending query: %q...\n", question)
	page, err := fetch(client.PostForm(base, url.Values{"prompt": {question}}))
	if err != nil {
		return err
	}

	if strings.Contains(page, "410 Client Error") {
		return fmt.Errorf("410 Client Error still present")
	}
	if strings.Contains(page, "Error generating response") {
		return fmt.Errorf("model call failed")
	}
	if strings.Contains(page, "Error :") {
		if m := errorDetail.FindStringSubmatch(page); m != nil {
			return fmt.Errorf("generic error found in response: %s", m[1])
		}
		return fmt.Errorf("generic error found in response")
	}

	if !strings.Contains(strings.ToLower(page), "cancer") {
		fmt.Println("WARNING: 'cancer' not found in response, but no error detected either.")
		return nil
	}
	fmt.Println("SUCCESS: 'cancer' found in response.")
	return nil
}

func fetch(resp *http.Response, err error) (string, error) {
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	return string(body), nil
}
