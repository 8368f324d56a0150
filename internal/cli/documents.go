package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/billsight/billsight-client/internal/core/domain"
	"github.com/billsight/billsight-client/internal/core/service"
)

func ProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process FILE",
		Short: "Extract one document into a spreadsheet",
		Long: fmt.Sprintf("Upload one document (%s, up to %s) and save the generated spreadsheet.",
			strings.Join(domain.AllowedExtensions(), ", "), humanize.IBytes(uint64(domain.MaxUploadBytes))),
		Args: cobra.ExactArgs(1),
		RunE: runProcess,
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	app := appFrom(cmd)
	if _, err := app.requireSession(cmd.Context()); err != nil {
		return err
	}

	buf := service.NewUploadBuffer("document", app.Log)
	if err := admitPaths(cmd, app, buf, args); err != nil {
		return err
	}
	if buf.Len() == 0 {
		return errors.New("no valid document to submit")
	}
	return submit(cmd, app, domain.SingleRequest(buf.Snapshot()[0]), buf)
}

func AnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Build an inventory analysis from purchase and sales bills",
		Args:  cobra.NoArgs,
		RunE:  runAnalyze,
	}
	cmd.Flags().StringSlice("purchase", nil, "purchase bill files (repeatable)")
	cmd.Flags().StringSlice("sales", nil, "sales bill files (repeatable)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	app := appFrom(cmd)
	if _, err := app.requireSession(cmd.Context()); err != nil {
		return err
	}

	purchasePaths, _ := cmd.Flags().GetStringSlice("purchase")
	salesPaths, _ := cmd.Flags().GetStringSlice("sales")

	purchase := service.NewUploadBuffer("purchase", app.Log)
	sales := service.NewUploadBuffer("sales", app.Log)
	if err := admitPaths(cmd, app, purchase, purchasePaths); err != nil {
		return err
	}
	if err := admitPaths(cmd, app, sales, salesPaths); err != nil {
		return err
	}

	req := domain.AnalysisRequest(purchase.Snapshot(), sales.Snapshot())
	return submit(cmd, app, req, purchase, sales)
}

// admitPaths loads paths into buf, reporting every file that is skipped.
func admitPaths(cmd *cobra.Command, app *App, buf *service.UploadBuffer, paths []string) error {
	items, err := app.Files.Items(paths...)
	if err != nil {
		return err
	}
	stderr := cmd.ErrOrStderr()
	buf.OnReject(func(it domain.UploadItem, err error) {
		fmt.Fprintf(stderr, "skipping %s (%s): %v\n", it.Name, humanize.IBytes(uint64(max(it.Size, 0))), err)
	})
	accepted, rejected := buf.Admit(items...)
	if rejected > 0 {
		fmt.Fprintf(stderr, "%d of %d files skipped\n", rejected, len(items))
	}
	app.Log.Debug().Int("accepted", len(accepted)).Int("rejected", rejected).Msg("files admitted")
	return nil
}

func submit(cmd *cobra.Command, app *App, req domain.SubmissionRequest, sources ...service.Clearer) error {
	progress := cmd.ErrOrStderr()
	app.Workflow.OnTransition(func(st service.WorkflowState) {
		if st.Stage.InFlight() {
			fmt.Fprintf(progress, "%s...\n", stageLabel(st.Stage))
		}
	})

	done, err := app.Workflow.Submit(cmd.Context(), req, sources...)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return errNotLoggedIn
		}
		return err
	}

	res, ok := <-done
	if !ok {
		return errors.New("submission was abandoned")
	}
	if !res.Success {
		_ = app.Workflow.Retry()
		return errors.New(res.Message)
	}

	printSaved(cmd.OutOrStdout(), res)
	return app.Workflow.Dismiss()
}

func printSaved(out io.Writer, res domain.SubmissionResult) {
	fmt.Fprintf(out, "Saved %s (%s)\n", res.SavedPath, humanize.IBytes(uint64(len(res.Payload))))
}

func stageLabel(s domain.Stage) string {
	switch s {
	case domain.StageUploading:
		return "Uploading"
	case domain.StageProcessing:
		return "Processing"
	case domain.StageGenerating:
		return "Generating spreadsheet"
	default:
		return string(s)
	}
}
