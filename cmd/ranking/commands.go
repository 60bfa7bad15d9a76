package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"ranking-service/internal/ranking"
)

var errUsage = errors.New("missing command, see -h")

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return a.cmdList(ctx)
	case "sync":
		return a.cmdSync(ctx)
	case "search":
		return a.cmdSearch(ctx, rest)
	case "vote":
		return a.cmdVote(ctx, rest)
	case "batch":
		return a.cmdBatch(ctx, rest)
	case "votes":
		return a.cmdVotes(ctx)
	case "login":
		return a.cmdLogin(ctx, rest)
	case "logout":
		return a.cmdLogout(ctx)
	case "edit":
		return a.cmdEdit(ctx, rest)
	case "delete":
		return a.cmdDelete(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) cmdList(ctx context.Context) error {
	if _, err := a.coord.Refresh(ctx); err != nil {
		return err
	}
	return renderMatches(a.out, a.coord.Visible(), a.coord.CanEdit())
}

func (a *app) cmdSync(ctx context.Context) error {
	items, err := a.coord.ClearSearch(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Ranking atualizado: %d itens.\n", len(items))
	return nil
}

func parseQuery(name string, args []string) (ranking.Query, error) {
	var q ranking.Query
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&q.NamePart, "name", "", "Part of the item name")
	fs.StringVar(&q.ArtistPart, "artist", "", "Part of the artist name")
	if err := fs.Parse(args); err != nil {
		return ranking.Query{}, err
	}
	return q, nil
}

func (a *app) cmdSearch(ctx context.Context, args []string) error {
	q, err := parseQuery("search", args)
	if err != nil {
		return err
	}
	if _, err := a.coord.Refresh(ctx); err != nil {
		return err
	}
	return renderMatches(a.out, a.coord.Search(q), a.coord.CanEdit())
}

// cmdVote votes by id, or searches by name and artist and votes for the
// single result, creating the item when nothing matched.
func (a *app) cmdVote(ctx context.Context, args []string) error {
	id, rest := splitID(args)
	if _, err := a.coord.Refresh(ctx); err != nil {
		return err
	}
	if id != "" {
		return voteErr(a.coord.CastVote(ctx, ranking.Persisted{Item: ranking.Item{ID: id}}))
	}

	q, err := parseQuery("vote", rest)
	if err != nil {
		return err
	}
	if !q.Active() {
		return errors.New("vote needs an id or -name/-artist")
	}
	matches := a.coord.Search(q)
	if len(matches) != 1 {
		if err := renderMatches(a.out, matches, false); err != nil {
			return err
		}
		return fmt.Errorf("%d items match, vote by id", len(matches))
	}
	return voteErr(a.coord.CastVote(ctx, matches[0].Candidate))
}

func (a *app) cmdBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return errors.New("batch needs at least one id")
	}
	if _, err := a.coord.Refresh(ctx); err != nil {
		return err
	}
	_, err := a.coord.CastBatch(ctx, ids)
	return err
}

// voteErr drops denials: the printer already told the user.
func voteErr(_ ranking.VoteResult, err error) error {
	if errors.Is(err, ranking.ErrQuotaExceeded) || errors.Is(err, ranking.ErrDuplicateVote) {
		return nil
	}
	return err
}

func (a *app) cmdVotes(ctx context.Context) error {
	records, err := a.ledger.Records(ctx, a.cfg.Namespace)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintln(a.out, r.ItemID)
	}
	fmt.Fprintf(a.out, "%d de %d votos usados.\n", len(records), ranking.VoteQuota)
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	var email, password string
	var force bool
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&email, "email", "", "Editor email")
	fs.StringVar(&password, "password", os.Getenv("RANKING_PASSWORD"), "Editor password (prefer RANKING_PASSWORD env)")
	fs.BoolVar(&force, "force", false, "Sign in again even with a stored session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.session.Authenticated() && !force {
		fmt.Fprintln(a.out, "Já existe uma sessão ativa.")
		return nil
	}
	if email == "" {
		return errors.New("login needs -email")
	}
	if password == "" {
		p, err := a.prompt("Senha: ")
		if err != nil {
			return err
		}
		password = p
	}
	if err := a.session.Login(ctx, email, password); err != nil {
		if errors.Is(err, ranking.ErrInvalidCredentials) {
			return errors.New("e-mail ou senha inválidos")
		}
		return err
	}
	fmt.Fprintln(a.out, "Login realizado.")
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	if err := a.session.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Sessão encerrada.")
	return nil
}

func (a *app) cmdEdit(ctx context.Context, args []string) error {
	id, rest := splitID(args)
	if id == "" {
		return errors.New("edit needs an id")
	}
	var f ranking.Fields
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.Name, "name", "", "New name")
	fs.StringVar(&f.Artist, "artist", "", "New artist")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	if _, err := a.coord.Refresh(ctx); err != nil {
		return err
	}
	it, ok := findItem(a.coord.Items(), id)
	if !ok {
		return ranking.ErrUnknownItem
	}
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	if !set["name"] {
		f.Name = it.Name
	}
	if !set["artist"] {
		f.Artist = it.Artist
	}
	if !a.dialog.Open(ranking.Persisted{Item: it}) {
		return ranking.ErrNotPersisted
	}
	if err := a.dialog.Confirm(ctx, f); err != nil {
		return authErr(err)
	}
	fmt.Fprintln(a.out, "Item atualizado.")
	return nil
}

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	id, rest := splitID(args)
	if id == "" {
		return errors.New("delete needs an id")
	}
	var yes bool
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&yes, "yes", false, "Skip the confirmation")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	if _, err := a.coord.Refresh(ctx); err != nil {
		return err
	}
	it, ok := findItem(a.coord.Items(), id)
	if !ok {
		return ranking.ErrUnknownItem
	}
	if !yes {
		answer, err := a.prompt(fmt.Sprintf("Excluir %q? [s/N] ", it.Name))
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "s") && !strings.EqualFold(answer, "y") {
			fmt.Fprintln(a.out, "Cancelado.")
			return nil
		}
	}
	if err := a.coord.DeleteItem(ctx, id); err != nil {
		return authErr(err)
	}
	fmt.Fprintln(a.out, "Item excluído.")
	return nil
}

// authErr keeps auth failures short; the printer already explained them.
func authErr(err error) error {
	switch {
	case errors.Is(err, ranking.ErrUnauthorized):
		return errors.New("login required")
	case errors.Is(err, ranking.ErrForbidden):
		return errors.New("editing not allowed")
	default:
		return err
	}
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// splitID takes a leading positional id so flags may follow it.
func splitID(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", args
	}
	return args[0], args[1:]
}

func findItem(items []ranking.Item, id string) (ranking.Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return ranking.Item{}, false
}
