package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"text/tabwriter"

	"ranking-service/internal/ranking"
)

const (
	msgVoteCounted   = "Seu voto foi computado!"
	msgQuotaExceeded = "Você atingiu o limite de 3 votos!"
	msgDuplicateVote = "Você já votou nesta opção! Só é permitido um voto por item."
	msgVoteFailed    = "Erro ao votar, tente novamente mais tarde."
	msgUnauthorized  = "Sessão expirada, faça login novamente."
	msgForbidden     = "Sua conta não pode editar este ranking."
)

// printer turns coordinator notifications into terminal messages. Batch
// votes report from several goroutines.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) OnVoteResult(_ context.Context, r ranking.VoteResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch r.Outcome {
	case ranking.VoteSuccess:
		fmt.Fprintf(p.out, "%s (%s)\n", msgVoteCounted, r.Name)
	case ranking.VoteQuotaExceeded:
		fmt.Fprintln(p.out, msgQuotaExceeded)
	case ranking.VoteDuplicate:
		fmt.Fprintln(p.out, msgDuplicateVote)
	default:
		fmt.Fprintln(p.out, msgVoteFailed)
	}
}

func (p *printer) OnRefreshed(context.Context, string, []ranking.Item) {}

func (p *printer) OnUnauthorized(context.Context) { p.println(msgUnauthorized) }

func (p *printer) OnForbidden(context.Context) { p.println(msgForbidden) }

func (p *printer) println(msg string) {
	p.mu.Lock()
	fmt.Fprintln(p.out, msg)
	p.mu.Unlock()
}

// renderMatches prints the render list as a ranked table. Drafts have no
// position and are marked as new.
func renderMatches(w io.Writer, matches []ranking.Match, canEdit bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "#\tNOME\tARTISTA\tVOTOS\tID"
	if canEdit {
		header += "\tAÇÕES"
	}
	fmt.Fprintln(tw, header)

	pos := 0
	for _, m := range matches {
		if !m.Visible {
			continue
		}
		it := m.Candidate.Snapshot()
		rank, id, votes := "-", "(novo)", "-"
		if m.Candidate.IsPersisted() {
			pos++
			rank, id, votes = strconv.Itoa(pos), it.ID, strconv.Itoa(it.VoteCount)
		}
		row := fmt.Sprintf("%s\t%s\t%s\t%s\t%s", rank, it.Name, it.Artist, votes, id)
		if canEdit {
			actions := ""
			if m.Candidate.IsPersisted() {
				actions = "edit,delete"
			}
			row += "\t" + actions
		}
		fmt.Fprintln(tw, row)
	}
	if pos == 0 && len(matches) == 0 {
		fmt.Fprintln(tw, "\t(vazio)\t\t\t")
	}
	return tw.Flush()
}
