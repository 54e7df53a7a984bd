package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/mgomes/resumefind/internal/models"
	"github.com/mgomes/resumefind/internal/session"
	"github.com/mgomes/resumefind/internal/tui"
	"github.com/spf13/cobra"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	renderWidth = 100
)

var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the active resume source and index size",
		Args:  cobra.NoArgs,
		RunE:  withSession(runStatus),
	}

	searchCmd = &cobra.Command{
		Use:   "search <query...>",
		Short: "Search resumes with a natural-language query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  withSession(runSearch),
	}

	uploadCmd = &cobra.Command{
		Use:   "upload <files or globs...>",
		Short: "Upload PDF resumes and search them instead of the local set",
		Args:  cobra.MinimumNArgs(1),
		RunE:  withSession(runUpload),
	}

	sourceCmd = &cobra.Command{
		Use:       "source <local|uploaded>",
		Short:     "Choose which resumes are searched",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{models.SourceLocal.String(), models.SourceUploaded.String()},
		RunE:      withSession(runSource),
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all uploaded resumes and go back to the local set",
		Args:  cobra.NoArgs,
		RunE:  withSession(runClear),
	}

	openCmd = &cobra.Command{
		Use:   "open <resume path>",
		Short: "Print the download address of a matched resume",
		Args:  cobra.ExactArgs(1),
		RunE:  withSession(runOpen),
	}
)

func init() {
	rootCmd.AddCommand(statusCmd, searchCmd, uploadCmd, sourceCmd, clearCmd, openCmd)

	clearCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

type sessionFunc func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error

// withSession seeds a session from the backend before running fn.
func withSession(fn sessionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.close()

		ctx, cancel := signalContext()
		defer cancel()

		if o := e.session.Start(ctx); o.Err != nil {
			return fmt.Errorf("could not load the backend status: %w", o.Err)
		}

		return fn(ctx, cmd, e, args)
	}
}

// report prints what an operation produced and turns failures into errors.
func report(o session.Outcome) error {
	if o.Appended != nil {
		fmt.Print(tui.RenderTurn(o.Appended, renderWidth))
	}
	if o.Err != nil {
		if o.Alert != "" {
			return errors.New(o.Alert)
		}
		return o.Err
	}
	if o.Alert != "" {
		fmt.Println(o.Alert)
	}
	return nil
}

func runStatus(_ context.Context, _ *cobra.Command, e *env, _ []string) error {
	status := e.session.Status()

	fmt.Printf("API:      %s\n", e.client.BaseURL())
	fmt.Printf("Source:   %s\n", status.Active)
	fmt.Printf("Indexed:  %d\n", status.IndexedCount)
	if len(status.UploadedFiles) > 0 {
		fmt.Printf("Uploaded: %d\n", len(status.UploadedFiles))
		for _, name := range status.UploadedFiles {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func runSearch(ctx context.Context, _ *cobra.Command, e *env, args []string) error {
	op := e.session.SubmitQuery(strings.Join(args, " "))
	if op == nil {
		return errors.New("query is empty")
	}
	return report(op(ctx))
}

func runUpload(ctx context.Context, _ *cobra.Command, e *env, args []string) error {
	paths, err := tui.ExpandPaths(args)
	if err != nil {
		return err
	}

	docs, err := models.ReadDocuments(paths)
	if err != nil {
		return err
	}

	op := e.session.UploadFiles(docs)
	if op == nil {
		return errors.New("nothing to upload")
	}
	return report(op(ctx))
}

func runSource(ctx context.Context, _ *cobra.Command, e *env, args []string) error {
	target, err := models.ParseSource(args[0])
	if err != nil {
		return err
	}

	op := e.session.ChangeSource(target)
	if op == nil {
		return errors.New("a source switch is already in progress")
	}
	return report(op(ctx))
}

func runClear(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
	if !e.session.RequestClear() {
		return errors.New("uploads are already being cleared")
	}

	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}

	if !yes {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Clear all %d uploaded resumes?", len(e.session.Status().UploadedFiles)),
			Items: []string{PromptYes, PromptNo},
		}

		_, selected, err := prompt.Run()
		if err != nil {
			e.session.CancelClear()
			return err
		}
		if selected != PromptYes {
			e.session.CancelClear()
			fmt.Fprintln(os.Stderr, "Clear cancelled.")
			return nil
		}
	}

	op := e.session.ConfirmClear()
	if op == nil {
		return errors.New("uploads are already being cleared")
	}
	return report(op(ctx))
}

func runOpen(_ context.Context, _ *cobra.Command, e *env, args []string) error {
	u, err := e.session.ResumeURL(args[0])
	if err != nil {
		return err
	}
	fmt.Println(u)
	return nil
}
