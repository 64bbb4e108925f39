package agents

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/haasonsaas/scribe/internal/blob"
	"github.com/haasonsaas/scribe/internal/classify"
	"github.com/haasonsaas/scribe/internal/errkind"
	"github.com/haasonsaas/scribe/internal/github"
	"github.com/haasonsaas/scribe/internal/model"
	"github.com/haasonsaas/scribe/internal/observability"
)

const (
	// minTranscriptBytes is the floor below which a trimmed transcript is not
	// worth a repository.
	minTranscriptBytes = 16

	maxInitialIssues = 10

	// nameCollisionRetries bounds suffixed re-creation attempts.
	nameCollisionRetries = 3

	// Step budgets inside the processor deadline.
	generateBudget = 8 * time.Second
	createBudget   = 10 * time.Second
)

var repoNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}[a-z0-9]$`)

// HistoryRecord is one line of the idempotency ledger. A record with a
// matching transcript hash means the repository was already created for this
// content.
type HistoryRecord struct {
	Timestamp      string `json:"timestamp"`
	TranscriptHash string `json:"transcript_hash"`
	RepoName       string `json:"repo_name"`
	RepoURL        string `json:"repo_url"`
	Created        bool   `json:"created"`
}

// RepositoryPayload is the repository processor's output payload.
type RepositoryPayload struct {
	RepoName          string `json:"repo_name,omitempty"`
	RepoURL           string `json:"repo_url,omitempty"`
	Created           bool   `json:"created"`
	IssueCount        int    `json:"issue_count,omitempty"`
	IssueFailures     int    `json:"issue_failures,omitempty"`
	DedupOf           string `json:"dedup_of,omitempty"`
	LedgerWriteFailed bool   `json:"ledger_write_failed,omitempty"`
	Reconciled        bool   `json:"reconciled,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

const generatePromptTemplate = `Turn this voice-note project idea into a repository plan.

Respond with JSON only, matching exactly this schema:
{
  "repo_name": "lowercase-hyphenated-name",
  "description": "one-line description",
  "readme_markdown": "full README content in Markdown",
  "initial_issues": [{"title": "...", "body": "..."}]
}

The repo name must be 2-64 characters of lowercase letters, digits, and
hyphens. List at most 10 initial issues; an empty list is fine.

Idea transcript:
---
%s
---`

// Repository creates a code-hosting repository for a project-idea transcript.
// At-most-once creation per transcript content is guaranteed by the hash
// ledger at github/history.jsonl: the ledger is checked before any external
// call and appended as the commit point after creation.
type Repository struct {
	store      blob.Store
	invoker    model.Invoker
	client     github.Client
	private    bool
	enabled    bool
	logger     *observability.Logger
	randSuffix func() string
}

// RepositoryConfig configures the processor.
type RepositoryConfig struct {
	// Private selects the created repository's visibility.
	Private bool
	// Enabled gates the processor entirely; when false every request is
	// skipped.
	Enabled bool
}

// NewRepository creates the repository processor.
func NewRepository(store blob.Store, invoker model.Invoker, client github.Client, cfg RepositoryConfig, logger *observability.Logger) *Repository {
	return &Repository{
		store:   store,
		invoker: invoker,
		client:  client,
		private: cfg.Private,
		enabled: cfg.Enabled,
		logger:  logger,
		randSuffix: func() string {
			return fmt.Sprintf("%04x", rand.Intn(0x10000)) // #nosec G404 -- suffix only disambiguates names
		},
	}
}

func (r *Repository) Agent() classify.Agent {
	return classify.AgentRepository
}

// Process runs the ordered creation pipeline: dedup check, plan generation,
// external creation, README, issues, ledger append.
func (r *Repository) Process(ctx context.Context, req Request) Result {
	started := resultClock()

	if !r.enabled {
		return skippedResult(classify.AgentRepository, req, started, RepositoryPayload{Reason: "disabled"})
	}
	if len(strings.TrimSpace(req.Transcript)) < minTranscriptBytes {
		return skippedResult(classify.AgentRepository, req, started, RepositoryPayload{Reason: "insufficient_content"})
	}

	sum := sha256.Sum256([]byte(req.Transcript))
	hash := hex.EncodeToString(sum[:])

	if prior, ok, err := r.findHistory(ctx, hash); err != nil {
		return failureResult(classify.AgentRepository, req, started, err)
	} else if ok {
		r.logger.Info(ctx, "repository creation deduplicated", "transcript_hash", hash, "repo_name", prior.RepoName)
		return skippedResult(classify.AgentRepository, req, started, RepositoryPayload{
			RepoName: prior.RepoName,
			RepoURL:  prior.RepoURL,
			Created:  false,
			DedupOf:  hash,
		})
	}

	plan, err := r.generatePlan(ctx, req.Transcript)
	if err != nil {
		return failureResult(classify.AgentRepository, req, started, err)
	}

	repo, created, err := r.createRepository(ctx, plan)
	if err != nil {
		return failureResult(classify.AgentRepository, req, started, err)
	}

	payload := RepositoryPayload{
		RepoName:   repo.Name,
		RepoURL:    repo.URL,
		Created:    created,
		Reconciled: !created,
	}

	if created {
		if err := r.client.CreateFile(ctx, repo.Name, "README.md", "Add README", []byte(plan.ReadmeMarkdown)); err != nil {
			r.logger.Warn(ctx, "readme creation failed", "repo_name", repo.Name, "error", err)
		}

		// Issue creation is best-effort; failures are recorded, not fatal.
		for _, issue := range plan.InitialIssues {
			if err := r.client.CreateIssue(ctx, repo.Name, issue.Title, issue.Body); err != nil {
				r.logger.Warn(ctx, "issue creation failed", "repo_name", repo.Name, "title", issue.Title, "error", err)
				payload.IssueFailures++
				continue
			}
			payload.IssueCount++
		}
	}

	record := HistoryRecord{
		Timestamp:      req.Timestamp.UTC().Format(time.RFC3339),
		TranscriptHash: hash,
		RepoName:       repo.Name,
		RepoURL:        repo.URL,
		Created:        created,
	}
	line, _ := json.Marshal(record)
	if err := r.store.AppendLine(ctx, blob.HistoryKey, string(line)); err != nil {
		// The external repository exists; the next delivery reconciles via
		// the by-name check. Surface the gap in the payload, not as failure.
		r.logger.Error(ctx, "history ledger append failed after creation", "repo_name", repo.Name, "error", err)
		payload.LedgerWriteFailed = true
	}

	r.logger.Info(ctx, "repository processed", "repo_name", repo.Name, "created", created, "issues", payload.IssueCount)
	return successResult(classify.AgentRepository, req, started, payload)
}

// findHistory scans the ledger for a record matching the transcript hash.
// A missing ledger is an empty one.
func (r *Repository) findHistory(ctx context.Context, hash string) (HistoryRecord, bool, error) {
	data, err := r.store.Get(ctx, blob.HistoryKey)
	if errors.Is(err, blob.ErrNotFound) {
		return HistoryRecord{}, false, nil
	}
	if err != nil {
		return HistoryRecord{}, false, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record HistoryRecord
		if err := json.Unmarshal(line, &record); err != nil {
			// A malformed line never blocks processing; ledger verify
			// reports it.
			continue
		}
		if record.TranscriptHash == hash {
			return record, true, nil
		}
	}
	return HistoryRecord{}, false, nil
}

type repoPlan struct {
	RepoName       string      `json:"repo_name"`
	Description    string      `json:"description"`
	ReadmeMarkdown string      `json:"readme_markdown"`
	InitialIssues  []planIssue `json:"initial_issues"`
}

type planIssue struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (r *Repository) generatePlan(ctx context.Context, transcript string) (repoPlan, error) {
	genCtx, cancel := context.WithTimeout(ctx, generateBudget)
	defer cancel()

	raw, err := r.invoker.Invoke(genCtx, fmt.Sprintf(generatePromptTemplate, transcript), 4096)
	if err != nil {
		return repoPlan{}, errkind.Wrap(errkind.Model, err)
	}

	var plan repoPlan
	if err := json.Unmarshal([]byte(model.StripFences(raw)), &plan); err != nil {
		return repoPlan{}, errkind.Wrap(errkind.Model, fmt.Errorf("parse repository plan: %w", err))
	}

	plan.RepoName = normalizeRepoName(plan.RepoName)
	if !repoNamePattern.MatchString(plan.RepoName) {
		return repoPlan{}, errkind.Newf(errkind.Model, "generated repo name %q is invalid", plan.RepoName)
	}
	if len(plan.InitialIssues) > maxInitialIssues {
		plan.InitialIssues = plan.InitialIssues[:maxInitialIssues]
	}
	return plan, nil
}

// createRepository creates the repository, resolving name collisions with a
// by-name check first (a collision with an earlier delivery whose ledger
// write failed is reconciled, not duplicated) and a random suffix otherwise.
func (r *Repository) createRepository(ctx context.Context, plan repoPlan) (github.Repo, bool, error) {
	createCtx, cancel := context.WithTimeout(ctx, createBudget)
	defer cancel()

	name := plan.RepoName
	for attempt := 0; attempt < nameCollisionRetries; attempt++ {
		repo, err := r.client.CreateRepository(createCtx, name, plan.Description, r.private)
		if err == nil {
			return repo, true, nil
		}
		if !errors.Is(err, github.ErrNameExists) {
			return github.Repo{}, false, err
		}

		if attempt == 0 {
			// First collision: the repository may be ours from a delivery
			// whose ledger append failed. Adopt it instead of creating a
			// suffixed twin.
			existing, getErr := r.client.GetRepository(createCtx, name)
			if getErr == nil {
				return existing, false, nil
			}
			if !errors.Is(getErr, github.ErrNotFound) {
				return github.Repo{}, false, getErr
			}
		}
		name = suffixedName(plan.RepoName, r.randSuffix())
	}
	return github.Repo{}, false, errkind.Newf(errkind.Conflict, "repository name %q: collisions exhausted retries", plan.RepoName)
}

func normalizeRepoName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "_", "-")
	return strings.Trim(name, "-")
}

// suffixedName appends a random suffix, trimming the base so the result stays
// within the 64-character name limit.
func suffixedName(base, suffix string) string {
	const maxLen = 64
	if len(base)+1+len(suffix) > maxLen {
		base = base[:maxLen-1-len(suffix)]
		base = strings.TrimRight(base, "-")
	}
	return base + "-" + suffix
}
