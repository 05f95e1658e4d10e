package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"labmatch/internal/server"
	"labmatch/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		addr := fs.String("addr", ":8080", "listen address")
		_ = fs.Parse(os.Args[2:])
		if err := server.Run(*addr); err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version.String())
	case "opportunities":
		opportunitiesCmd(os.Args[2:])
	case "search":
		searchCmd(os.Args[2:])
	case "embed":
		embedCmd(os.Args[2:])
	case "scrape":
		scrapeCmd(os.Args[2:])
	case "status":
		getCmd("/opportunities/search/status")
	case "metrics":
		getCmd("/metrics")
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("labmatch - research opportunity matching service")
	fmt.Println("usage:")
	fmt.Println("  labmatch serve [--addr :8080]")
	fmt.Println("  labmatch version")
	fmt.Println("  labmatch opportunities [--q text] [--institution name] [--all]")
	fmt.Println("  labmatch search \"<query>\" --token <jwt> [--limit 20] [--state CA] [--remote] [--degree undergraduate]")
	fmt.Println("  labmatch embed [users|opportunities] --token <jwt>")
	fmt.Println("  labmatch scrape --token <jwt> [--start-url <url>]")
	fmt.Println("  labmatch status")
	fmt.Println("  labmatch metrics")
}

func serverURL() string {
	if v := os.Getenv("LABMATCH_SERVER_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func getCmd(path string) {
	resp, err := http.Get(serverURL() + path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	io.Copy(os.Stdout, resp.Body)
	fmt.Println()
}

func postJSON(path, token string, body any) *http.Response {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, serverURL()+path, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return resp
}

func opportunitiesCmd(args []string) {
	fs := flag.NewFlagSet("opportunities", flag.ExitOnError)
	q := fs.String("q", "", "substring filter on title/description")
	institution := fs.String("institution", "", "institution filter")
	all := fs.Bool("all", false, "include inactive postings")
	_ = fs.Parse(args)

	vals := url.Values{}
	if *q != "" {
		vals.Set("q", *q)
	}
	if *institution != "" {
		vals.Set("institution", *institution)
	}
	if *all {
		vals.Set("active", "all")
	}
	path := "/opportunities"
	if enc := vals.Encode(); enc != "" {
		path += "?" + enc
	}
	resp, err := http.Get(serverURL() + path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var res struct {
		Opportunities []struct {
			ID          string `json:"opportunityID"`
			Title       string `json:"title"`
			Institution string `json:"institution"`
			IsActive    bool   `json:"isActive"`
		} `json:"opportunities"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		_, _ = io.Copy(os.Stdout, resp.Body)
		return
	}
	for _, o := range res.Opportunities {
		state := "active"
		if !o.IsActive {
			state = "inactive"
		}
		fmt.Printf("%s  [%s]  %s", o.ID, state, o.Title)
		if o.Institution != "" {
			fmt.Printf("  (%s)", o.Institution)
		}
		fmt.Println()
	}
	fmt.Printf("%d postings\n", res.Count)
}

func searchCmd(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: labmatch search \"<query>\" --token <jwt> [--limit 20] [--state CA] [--remote] [--degree undergraduate]")
		os.Exit(1)
	}
	query := args[0]
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	token := fs.String("token", "", "access token")
	limit := fs.Int("limit", 20, "max results")
	state := fs.String("state", "", "two-letter state code")
	remote := fs.Bool("remote", false, "remote postings only")
	degree := fs.String("degree", "", "degree level")
	_ = fs.Parse(args[1:])
	if *token == "" {
		fmt.Println("--token required")
		os.Exit(1)
	}

	filters := map[string]any{}
	if *state != "" {
		filters["states"] = []string{strings.ToUpper(*state)}
	}
	if *remote {
		filters["isRemote"] = true
	}
	if *degree != "" {
		filters["degreeLevel"] = *degree
	}
	resp := postJSON("/opportunities/search", *token, map[string]any{
		"query": query, "limit": *limit, "filters": filters,
	})
	defer resp.Body.Close()

	var res struct {
		Results []struct {
			Opportunity struct {
				ID    string `json:"opportunityID"`
				Title string `json:"title"`
			} `json:"opportunity"`
			Score float64 `json:"similarityScore"`
		} `json:"results"`
		TotalActive int    `json:"totalActive"`
		Backend     string `json:"backend"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		_, _ = io.Copy(os.Stdout, resp.Body)
		return
	}
	for _, r := range res.Results {
		fmt.Printf("%.3f  %s  %s\n", r.Score, r.Opportunity.ID, r.Opportunity.Title)
	}
	fmt.Printf("%d of %d active postings (backend=%s)\n", len(res.Results), res.TotalActive, res.Backend)
}

func embedCmd(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: labmatch embed [users|opportunities] --token <jwt>")
		os.Exit(1)
	}
	kind := args[0]
	if kind != "users" && kind != "opportunities" {
		fmt.Println("usage: labmatch embed [users|opportunities] --token <jwt>")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	token := fs.String("token", "", "access token")
	_ = fs.Parse(args[1:])
	if *token == "" {
		fmt.Println("--token required")
		os.Exit(1)
	}
	resp := postJSON("/embeddings/"+kind+"/sweep", *token, nil)
	defer resp.Body.Close()
	io.Copy(os.Stdout, resp.Body)
	fmt.Println()
}

func scrapeCmd(args []string) {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	token := fs.String("token", "", "access token")
	startURL := fs.String("start-url", "", "crawl entry page (falls back to server config)")
	_ = fs.Parse(args)
	if *token == "" {
		fmt.Println("--token required")
		os.Exit(1)
	}
	resp := postJSON("/scrape/run", *token, map[string]string{"startURL": *startURL})
	defer resp.Body.Close()
	io.Copy(os.Stdout, resp.Body)
	fmt.Println()
}
