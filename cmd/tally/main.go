// Command tally is the operator-side decryption count. The server never sees
// the private key: this tool fetches the encrypted ballots, decrypts them
// locally, uploads the plaintexts, and renders the resulting snapshot.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"fraservotes-backend/models"
	"fraservotes-backend/pgputil"
	"fraservotes-backend/tally"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

type config struct {
	serverURL  string
	token      string
	keyFile    string
	passphrase string
}

type client struct {
	http    *http.Client
	baseURL string
	token   string
}

func main() {
	log.SetFlags(0)

	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	cfg := parseFlags()

	c := &client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(cfg.serverURL, "/"),
		token:   cfg.token,
	}

	if err := run(cfg, c); err != nil {
		log.Fatalf("tally failed: %v", err)
	}
}

func parseFlags() config {
	cfg := config{}
	flag.StringVar(&cfg.serverURL, "server", envOr("TALLY_SERVER", "http://localhost:8090"), "election server base URL")
	flag.StringVar(&cfg.token, "token", os.Getenv("TALLY_TOKEN"), "admin bearer token")
	flag.StringVar(&cfg.keyFile, "key", os.Getenv("TALLY_KEY_FILE"), "path to the armored private key")
	flag.StringVar(&cfg.passphrase, "passphrase", os.Getenv("TALLY_PASSPHRASE"), "private key passphrase")
	flag.Parse()

	if cfg.token == "" {
		log.Fatal("a bearer token is required (-token or TALLY_TOKEN)")
	}
	if cfg.keyFile == "" {
		log.Fatal("a private key file is required (-key or TALLY_KEY_FILE)")
	}
	return cfg
}

func run(cfg config, c *client) error {
	// The count only makes sense over a frozen ballot set
	var electionConfig models.Config
	if err := c.getJSON("/api/config", &electionConfig); err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}
	if electionConfig.IsOpen {
		return fmt.Errorf("voting must be closed first")
	}
	if electionConfig.PublicKey == nil {
		return fmt.Errorf("no public key is stored, nothing was collected with this election config")
	}

	var ballots []models.EncryptedBallot
	if err := c.getJSON("/api/ballots/encrypted", &ballots); err != nil {
		return fmt.Errorf("fetch encrypted ballots: %w", err)
	}
	log.Printf("fetched %d encrypted ballots", len(ballots))

	keyArmor, err := os.ReadFile(cfg.keyFile)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	keyring, err := pgputil.ReadPrivateKey(string(keyArmor), cfg.passphrase)
	if err != nil {
		return err
	}

	// Abort before touching any ballot if the keypair does not round-trip,
	// otherwise a wrong key would flag every ballot as corrupt.
	if err := pgputil.SelfTest(*electionConfig.PublicKey, keyring); err != nil {
		return err
	}
	log.Println("key self test passed")

	decrypted := make([]decryptedBallotInput, 0, len(ballots))
	var corrupt []string
	for _, ballot := range ballots {
		plaintext, err := pgputil.DecryptMessage(keyring, ballot.EncryptedBallot)
		if err != nil {
			log.Printf("ballot %s could not be decrypted: %v", ballot.ID, err)
			corrupt = append(corrupt, ballot.ID)
			continue
		}
		options, err := tally.ParseBallot(plaintext)
		if err != nil {
			log.Printf("ballot %s is malformed: %v", ballot.ID, err)
			corrupt = append(corrupt, ballot.ID)
			continue
		}
		decrypted = append(decrypted, decryptedBallotInput{
			EncryptedBallotID: ballot.ID,
			SelectedOptions:   options,
		})
	}

	if len(corrupt) > 0 {
		fmt.Printf("\n%d of %d ballots are corrupt and will be excluded:\n", len(corrupt), len(ballots))
		for _, id := range corrupt {
			fmt.Printf("  %s\n", id)
		}
		if !confirm(fmt.Sprintf("Proceed with the remaining %d ballots?", len(decrypted))) {
			return fmt.Errorf("aborted by operator")
		}
	}

	var saved struct {
		ResultID string `json:"result_id"`
	}
	payload := saveDecryptedBallotsInput{NewDecryptedBallots: decrypted}
	if err := c.postJSON("/api/ballots/decrypted/save", payload, &saved); err != nil {
		return fmt.Errorf("save decrypted ballots: %w", err)
	}
	log.Printf("saved result %s", saved.ResultID)

	var result models.Result
	if err := c.getJSON("/api/results/"+saved.ResultID, &result); err != nil {
		return fmt.Errorf("fetch result: %w", err)
	}

	renderResult(os.Stdout, &result)
	return nil
}

// Input shapes mirror the server's save endpoint.
type decryptedBallotInput struct {
	EncryptedBallotID string                  `json:"encrypted_ballot_id"`
	SelectedOptions   []models.SelectedOption `json:"selected_options"`
}

type saveDecryptedBallotsInput struct {
	NewDecryptedBallots []decryptedBallotInput `json:"new_decrypted_ballots"`
}

func renderResult(w io.Writer, result *models.Result) {
	fmt.Fprintf(w, "\nResult %s counted at %s\n\n", result.ID,
		time.Unix(result.Timestamp, 0).Format(time.RFC1123))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Position", "Candidate", "Votes"})
	table.SetAutoMergeCells(true)
	table.SetRowLine(true)
	for _, position := range result.Positions {
		for _, candidate := range position.Candidates {
			table.Append([]string{position.Position, candidate.Candidate, strconv.Itoa(candidate.Votes)})
		}
	}
	table.Render()
}

// confirm asks a y/N question on stdin, defaulting to no.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

func (c *client) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) postJSON(path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
