package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"github.com/wesm/github-issue-link/config"
	"github.com/wesm/github-issue-link/internal/api"
	"github.com/wesm/github-issue-link/internal/db"
	"github.com/wesm/github-issue-link/internal/link"
	"github.com/wesm/github-issue-link/internal/logger"
	"github.com/wesm/github-issue-link/internal/models"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("%v", err)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("ghlink", pflag.ContinueOnError)
	configPath := flagSet.String("config", "config.json", "Path to configuration file")
	createConfig := flagSet.Bool("init", false, "Create a default configuration file if it doesn't exist")
	repo := flagSet.String("repo", "", "Repository to act on (format: owner/name)")
	assignees := flagSet.Bool("assignees", false, "List assignable users of --repo")
	issues := flagSet.Bool("issues", false, "List open issues of --repo")
	repos := flagSet.Bool("repos", false, "List repositories accessible to the installation")
	search := flagSet.String("search", "", "Search issues of --repo")
	get := flagSet.String("get", "", "Show issue NUMBER of --repo")
	create := flagSet.Bool("create", false, "Create an issue in --repo and link it")
	title := flagSet.String("title", "", "Title of the issue to create")
	description := flagSet.String("description", "", "Description of the issue to create")
	assignee := flagSet.String("assignee", "", "Login to assign the created issue to")
	linkIssue := flagSet.String("link", "", "Link existing issue NUMBER of --repo")
	comment := flagSet.String("comment", "", "Comment to post on the linked issue")
	links := flagSet.Bool("links", false, "List recorded links")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if *createConfig {
		if err := config.CreateDefaultConfig(*configPath); err != nil {
			return fmt.Errorf("failed to create default configuration: %w", err)
		}
		log.Printf("Created default configuration at %s", *configPath)
		return nil
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	needsRepo := *assignees || *issues || *search != "" || *get != "" || *create || *linkIssue != ""
	if needsRepo {
		if _, _, err := link.ParseRepositoryString(*repo); err != nil {
			return err
		}
	}

	var database *db.DB
	if *create || *linkIssue != "" || *links {
		database, err = db.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		if err := database.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	if *links {
		records, err := database.ListExternalIssues(cfg.IntegrationID)
		if err != nil {
			return err
		}
		for _, r := range records {
			issueURL, err := api.IssueURL(cfg.WebBaseURL, r.Key)
			if err != nil {
				slog.Warn("failed to build issue url", slog.String("key", r.Key), slog.Any("error", err))
			}
			fmt.Printf("%s\t%s\t%s\n", r.Key, r.Title, issueURL)
		}
		return nil
	}

	if !needsRepo && !*repos {
		printUsage(flagSet)
		return nil
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch {
	case *assignees:
		choices, err := client.GetAllowedAssignees(ctx, *repo)
		if err != nil {
			return err
		}
		for _, c := range choices {
			fmt.Printf("%q\t%s\n", c.Login, c.DisplayName)
		}
	case *issues:
		choices, err := client.GetRepoIssues(ctx, *repo)
		if err != nil {
			return err
		}
		printIssueChoices(choices)
	case *search != "":
		choices, err := client.SearchIssues(ctx, *repo, *search)
		if err != nil {
			return err
		}
		printIssueChoices(choices)
	case *repos:
		choices, err := client.GetRepositories(ctx)
		if err != nil {
			return err
		}
		for _, c := range choices {
			fmt.Println(c.FullName)
		}
	case *get != "":
		record, err := client.GetIssue(ctx, *get, models.LinkIssueData{Repo: *repo})
		if err != nil {
			return err
		}
		printRecord(record)
	case *create:
		form := models.CreateIssueForm{Repo: *repo, Title: *title, Description: *description}
		if flagSet.Changed("assignee") {
			form.Assignee = assignee
		}
		external, err := link.New(database, client, cfg.IntegrationID).CreateAndLink(ctx, cfg.OrganizationID, form)
		if err != nil {
			return err
		}
		log.Printf("Created and linked %s", external.Key)
	case *linkIssue != "":
		data := models.LinkIssueData{Repo: *repo, ExternalIssue: *linkIssue, Comment: *comment}
		external, err := link.New(database, client, cfg.IntegrationID).LinkExisting(ctx, cfg.OrganizationID, *linkIssue, data)
		if err != nil {
			return err
		}
		log.Printf("Linked %s", external.Key)
	}

	return nil
}

func newClient(cfg *config.Config) (*api.GitHubClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}

	key, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	opts := []api.Option{
		api.WithBaseURL(cfg.APIBaseURL),
		api.WithTimeout(timeout),
		api.WithLogger(slog.Default()),
	}
	if cfg.GraphQLURL != "" {
		opts = append(opts, api.WithGraphQLURL(cfg.GraphQLURL))
	}

	tokens, err := api.NewAppTokenProviderFromKey(cfg.AppID, key, opts...)
	if err != nil {
		return nil, err
	}

	return api.NewGitHubClient(cfg.InstallationID, cfg.OrganizationID, tokens, opts...)
}

func printIssueChoices(choices []models.IssueChoice) {
	for _, c := range choices {
		fmt.Printf("%s\t%s\n", strconv.Itoa(c.Number), c.Label)
	}
}

func printRecord(record *models.IssueRecord) {
	fmt.Printf("key:         %d\n", record.Key)
	fmt.Printf("repo:        %s\n", record.Repo)
	fmt.Printf("title:       %s\n", record.Title)
	fmt.Printf("description: %s\n", record.Description)
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Println("ghlink - link tracker issues to GitHub issues")
	fmt.Println("---------------------------------------------")
	fmt.Println("Use --repos to list repositories of the installation")
	fmt.Println("Use --assignees --repo owner/name to list assignable users")
	fmt.Println("Use --issues --repo owner/name to list open issues")
	fmt.Println("Use --search QUERY --repo owner/name to search issues")
	fmt.Println("Use --get NUMBER --repo owner/name to show an issue")
	fmt.Println("Use --create --repo owner/name --title T --description D to create and link an issue")
	fmt.Println("Use --link NUMBER --repo owner/name --comment C to link an existing issue")
	fmt.Println("Use --links to list recorded links")
	fmt.Println()
	fmt.Printf("Settings can be overridden with %s_* environment variables or a .env file\n", config.EnvPrefix)
	fmt.Println()
	flagSet.PrintDefaults()
}
