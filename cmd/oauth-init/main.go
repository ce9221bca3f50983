// Command oauth-init runs the installed-app OAuth flow once and stores the
// token the Sheets source uses with GOOGLE_OAUTH_CLIENT_FILE.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"financeboard/internal/cli"
	"financeboard/internal/config"
	"financeboard/internal/log"
	gsheet "financeboard/internal/sheets/google"

	"golang.org/x/oauth2"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(nil).WithComponent(log.ComponentSheets)

	// Only the OAuth keys matter here, so the rest of the config is not
	// validated.
	cfg, err := config.Load()
	if err != nil {
		cli.Fatal(logger, "Failed to load configuration", err)
	}

	clientJSON, err := readClient(cfg)
	if err != nil {
		cli.Fatal(logger, "Missing OAuth client", err)
	}
	oc, err := gsheet.OAuthConfig(clientJSON)
	if err != nil {
		cli.Fatal(logger, "Invalid OAuth client", err)
	}

	port := os.Getenv("OAUTH_REDIRECT_PORT")
	if port == "" {
		port = "8085"
	}
	// The redirect URI must be registered on the OAuth client.
	oc.RedirectURL = "http://localhost:" + port + "/callback"

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 5*time.Minute)
	defer cancelTimeout()

	state := fmt.Sprintf("financeboard-%d", time.Now().UnixNano())
	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- q.Get("code"):
		default:
		}
	})
	srv := &http.Server{Addr: "localhost:" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback server failed", log.FieldError, err.Error())
			cancel()
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize read access to your spreadsheets:\n%s\n", oc.AuthCodeURL(state, oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		cli.Fatal(logger, "Authorization did not complete", ctx.Err())
	}

	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		cli.Fatal(logger, "Token exchange failed", err)
	}
	out := cfg.GoogleOAuthTokenFile
	if out == "" {
		out = "token.json"
	}
	if err := gsheet.SaveToken(out, tok); err != nil {
		cli.Fatal(logger, "Failed to save token", err)
	}
	fmt.Printf("Saved token to %s\nSet GOOGLE_OAUTH_TOKEN_FILE=%s to use it.\n", out, out)
}

func readClient(cfg *config.Config) ([]byte, error) {
	if inline := os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"); inline != "" {
		return []byte(inline), nil
	}
	if cfg.GoogleOAuthClientFile == "" {
		return nil, errors.New("set GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON")
	}
	b, err := os.ReadFile(cfg.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	return b, nil
}
