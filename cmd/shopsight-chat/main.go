// Command shopsight-chat is an interactive terminal client for the search
// API. It keeps the conversation state (query history and the currently shown
// product) on the client side, the way the service expects.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/renwaldo/shopsight/engine"
	"github.com/renwaldo/shopsight/internal/version"
)

// firstIncompatibleVersion is the server release expected to retire the v1
// search API this client speaks.
const firstIncompatibleVersion = "2.0.0"

var (
	serverURL = flag.String("server", "http://localhost:28091", "ShopSight server URL")
	timeout   = flag.Duration("timeout", 90*time.Second, "Per-turn request timeout")
)

func main() {
	flag.Parse()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nBye!")
		os.Exit(0)
	}()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("%s connected to %s\n", boldGreen("ShopSight"), *serverURL)
	fmt.Println("Describe what you are shopping for. Type 'quit' to exit.")

	client := &http.Client{Timeout: *timeout}

	if serverVersion := fetchServerVersion(client, *serverURL); serverVersion != "" {
		fmt.Printf("Server version: %s\n", serverVersion)
		if version.IsVersionGreaterOrEqualThan(serverVersion, firstIncompatibleVersion) {
			fmt.Println(yellow("This client speaks the v1 API; the server may no longer support it."))
		}
	}
	scanner := bufio.NewScanner(os.Stdin)

	var sessionID string
	var history []string
	var current *engine.Product

	for {
		fmt.Printf("\n%s ", boldCyan("you>"))
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}

		result, err := postTurn(client, *serverURL, &engine.TurnRequest{
			SessionID: sessionID,
			Query:     text,
			History:   history,
			Current:   current,
		})
		if err != nil {
			fmt.Printf("%s %v\n", yellow("error:"), err)
			continue
		}

		sessionID = result.SessionID
		history = result.History
		if result.Product != nil {
			current = result.Product
		}

		fmt.Printf("%s %s\n", boldGreen("query>"), result.RefinedQuery)
		if result.Product == nil {
			fmt.Println(yellow("No new item matched; try rephrasing."))
			continue
		}
		fmt.Printf("%s %s (%s)\n", boldGreen("found>"), result.Product.Title, result.Product.ID)
		if result.Product.SelectedImage != "" {
			fmt.Printf("%s %s\n", boldGreen("image>"), result.Product.SelectedImage)
		} else {
			fmt.Println(yellow("No representative image available."))
		}
	}
}

// fetchServerVersion asks the health endpoint which release is serving.
// Returns "" when the server is unreachable or predates the version field.
func fetchServerVersion(client *http.Client, serverURL string) string {
	resp, err := client.Get(serverURL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		if resp != nil {
			resp.Body.Close()
		}
		return ""
	}
	defer resp.Body.Close()

	var health struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return ""
	}
	return health.Version
}

func postTurn(client *http.Client, serverURL string, req *engine.TurnRequest) (*engine.TurnResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(serverURL+"/api/v1/search/turns", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var httpErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&httpErr)
		if httpErr.Message != "" {
			return nil, fmt.Errorf("server: %s", httpErr.Message)
		}
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	result := &engine.TurnResult{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, err
	}
	return result, nil
}
