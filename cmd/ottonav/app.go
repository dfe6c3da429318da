package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

// navigator is the part of *engine.Navigator the command loop drives.
type navigator interface {
	Start() error
	Stop()
	SelectSequence(seq domain.StepSequence) error
	Next() error
	Previous() error
	Repeat() error
	GoTo(i int) error
}

// printer is where the command loop writes user-facing output.
type printer interface {
	PrintHint(text string)
	PrintUrgent(text string)
}

type recipes interface {
	domain.RecipeSource
	Search(ctx context.Context, query string) ([]domain.RecipeSummary, error)
}

type cliApp struct {
	nav     navigator
	recipes recipes
	out     printer
	log     *logger.Logger

	listed []domain.RecipeSummary // last listing, for selection by number
}

// run reads input lines until ctx ends, the channel closes or the user quits.
func (a *cliApp) run(ctx context.Context, input <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-input:
			if !ok {
				return
			}
			if quit := a.handle(ctx, line); quit {
				return
			}
		}
	}
}

// handle executes one input line. It returns true when the user quits.
func (a *cliApp) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")
	cmd = strings.ToLower(cmd)
	a.log.Debug("input %q", line)

	var err error
	switch cmd {
	case "":
		return false
	case "q", "quit", "exit":
		return true
	case "h", "help":
		a.help()
	case "n", "next":
		err = a.nav.Next()
	case "p", "prev", "previous", "back":
		err = a.nav.Previous()
	case "r", "repeat":
		err = a.nav.Repeat()
	case "start", "listen":
		if err = a.nav.Start(); err == nil {
			a.out.PrintHint("Listening. Say next, previous or repeat.")
		}
	case "stop":
		a.nav.Stop()
		a.out.PrintHint("Stopped listening.")
	case "l", "list":
		err = a.list(ctx, arg)
	case "step", "goto":
		err = a.gotoStep(arg)
	default:
		if n, convErr := strconv.Atoi(cmd); convErr == nil {
			err = a.selectNumber(ctx, n)
		} else {
			a.out.PrintHint(fmt.Sprintf("Unknown command %q. Type 'help'.", cmd))
		}
	}

	if err != nil {
		a.report(err)
	}
	return false
}

func (a *cliApp) help() {
	for _, l := range []string{
		"list [query]   show recipes",
		"<number>       select a recipe from the last list",
		"n / p / r      next, previous, repeat",
		"step <n>       jump to step n",
		"start / stop   voice commands on / off",
		"quit           exit",
	} {
		a.out.PrintHint(l)
	}
}

func (a *cliApp) list(ctx context.Context, query string) error {
	var (
		list []domain.RecipeSummary
		err  error
	)
	if query = strings.TrimSpace(query); query != "" {
		list, err = a.recipes.Search(ctx, query)
	} else {
		list, err = a.recipes.List(ctx)
	}
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.out.PrintHint("No recipes found.")
		return nil
	}
	a.listed = list
	for i, r := range list {
		a.out.PrintHint(fmt.Sprintf("%d. %s (%d steps)", i+1, r.Name, r.StepCount))
	}
	return nil
}

func (a *cliApp) selectNumber(ctx context.Context, n int) error {
	if len(a.listed) == 0 {
		if err := a.list(ctx, ""); err != nil {
			return err
		}
	}
	if n < 1 || n > len(a.listed) {
		return fmt.Errorf("pick a number between 1 and %d", len(a.listed))
	}
	return a.selectRecipe(ctx, a.listed[n-1].ID)
}

func (a *cliApp) selectRecipe(ctx context.Context, id string) error {
	r, err := a.recipes.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.nav.SelectSequence(r.Sequence()); err != nil {
		return err
	}
	a.out.PrintHint(fmt.Sprintf("Selected %s.", r.Name))
	return nil
}

func (a *cliApp) gotoStep(arg string) error {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return errors.New("step needs a number")
	}
	return a.nav.GoTo(n - 1)
}

func (a *cliApp) report(err error) {
	switch {
	case errors.Is(err, domain.ErrNoSequence):
		a.out.PrintHint("Select a recipe first. Type 'list'.")
	case errors.Is(err, domain.ErrUnsupported):
		a.out.PrintUrgent("Voice input is not available: " + err.Error())
	case errors.Is(err, domain.ErrAlreadyActive):
		a.out.PrintHint("Already listening.")
	default:
		a.out.PrintUrgent(err.Error())
	}
}
