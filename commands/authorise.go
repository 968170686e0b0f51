package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/oauth2"

	"github.com/nemo-facility/nemo-app-drive/drive"
)

var AuthoriseCmd = Authorise{
	port: 8080,
}

// Authorise runs the OAuth2 consent flow for the Google Drive and Sheets
// scopes and saves the token for the other commands.
type Authorise struct {
	port    int
	noOpen  bool
	browser func(string) error
}

func (cmd *Authorise) Name() string {
	return "authorise"
}

func (cmd *Authorise) Description() string {
	return "Authorises nemo-app-drive to access Google Drive and Google Sheets"
}

func (cmd *Authorise) Usage() string {
	return "[--credentials <file>] [--port <port>]"
}

func (cmd *Authorise) Help() string {
	return strings.Join([]string{
		"Authorises nemo-app-drive to access Google Drive and Google Sheets.",
		"",
		"Opens the Google consent page in a browser and waits for the redirect to",
		"http://localhost:<port>. The token is saved to <workdir>/.google/<credentials>.tokens",
		"and is used by the other commands. A service account key needs no authorisation.",
		"",
		"  Examples:",
		`    nemo-app-drive authorise --credentials "credentials.json"`,
	}, "\n")
}

func (cmd *Authorise) Flags(flagset *pflag.FlagSet) {
	flagset.IntVar(&cmd.port, "port", cmd.port, "Local port for the OAuth2 redirect")
	flagset.BoolVar(&cmd.noOpen, "no-browser", cmd.noOpen, "Prints the authorisation URL without opening a browser")
}

func (cmd *Authorise) Execute(ctx context.Context, options *Options) error {
	credentials := options.conf.Google.Credentials
	if strings.TrimSpace(credentials) == "" {
		return fmt.Errorf("--credentials is a required option")
	}

	config, err := drive.OAuthConfig(credentials, drive.DRIVE, drive.SHEETS)
	if err != nil {
		return fmt.Errorf("authorisation error (%v)", err)
	}

	tokens := drive.TokensFile(credentials, filepath.Join(options.conf.Workdir, ".google"))

	token, err := cmd.authenticate(ctx, config, options)
	if err != nil {
		return err
	} else if token == nil {
		return nil
	}

	if err := drive.SaveToken(tokens, token); err != nil {
		return fmt.Errorf("unable to save OAuth token (%v)", err)
	}

	infof(options.log, "saved OAuth token to %v", tokens)

	return nil
}

// authenticate starts an HTTP server on localhost for the OAuth2 redirect and
// exchanges the authorisation code for a token. Returns nil if cancelled.
func (cmd *Authorise) authenticate(ctx context.Context, config *oauth2.Config, options *Options) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cmd.port))
	if err != nil {
		return nil, err
	}

	state := fmt.Sprintf("%s-%d", APP, os.Getpid())
	config.RedirectURL = fmt.Sprintf("http://localhost:%d/", cmd.port)

	authorised := make(chan string, 1)
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, rq *http.Request) {
		debugf(options.log, "RQ:  %+v", rq.URL)

		if rq.FormValue("state") != state {
			http.Error(w, "Invalid state", http.StatusBadRequest)
			return
		}

		code := rq.FormValue("code")
		if code == "" {
			http.Error(w, "Missing authorisation code", http.StatusBadRequest)
			return
		}

		fmt.Fprintln(w, "nemo-app-drive has been authorised - you can close this window")

		select {
		case authorised <- code:
		default:
		}
	})

	srv := &http.Server{
		Handler: mux,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			warnf(options.log, "%v", err)
		}
	}()

	defer func() {
		if err := srv.Shutdown(context.Background()); err != nil {
			warnf(options.log, "%v", err)
		}
	}()

	url := config.AuthCodeURL(state, oauth2.AccessTypeOffline)

	fmt.Printf("\n  Open the following link in your browser to authorise %s:\n\n  %v\n\n", APP, url)

	if !cmd.noOpen {
		open := cmd.browser
		if open == nil {
			open = browse
		}

		if err := open(url); err != nil {
			fmt.Println("  Could not open the authorisation page in your browser - please open the link manually")
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	select {
	case <-interrupt:
		fmt.Printf("\n.. cancelled\n\n")
		return nil, nil

	case <-ctx.Done():
		return nil, ctx.Err()

	case code := <-authorised:
		token, err := config.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve token from web (%v)", err)
		}

		return token, nil
	}
}

func browse(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
