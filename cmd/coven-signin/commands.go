// ABOUTME: Subcommand implementations for coven-signin
// ABOUTME: Runs orchestrator workflows and renders their results to the terminal

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/2389/coven-signin/internal/authorizer"
	"github.com/2389/coven-signin/internal/notify"
	"github.com/2389/coven-signin/internal/signin"
)

// errWorkflowFailed reports a workflow failure whose details were already shown.
var errWorkflowFailed = errors.New("workflow failed")

// errBusy is returned when the orchestrator dropped the invocation.
var errBusy = errors.New("another request is already in progress")

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	email := fs.String("email", "", "account email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	identification := strings.TrimSpace(*email)
	if identification == "" {
		var err error
		identification, err = a.prompt("Email: ")
		if err != nil {
			return err
		}
	}

	password, err := a.password("Password: ")
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	res := a.orch.ValidateAndAuthenticate(ctx, signin.Credentials{
		Identification: identification,
		Password:       password,
	})
	if err := a.report(res); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s Signed in as %s\n", color.GreenString("✓"), color.CyanString(res.Session.Subject))
	if title, ok := a.settings.Get("title"); ok {
		fmt.Fprintf(a.out, "  %s %s\n", color.HiBlackString("site:"), title)
	}
	return nil
}

func (a *app) cmdForgot(ctx context.Context, args []string) error {
	var identification string
	switch len(args) {
	case 0:
		var err error
		identification, err = a.prompt("Email: ")
		if err != nil {
			return err
		}
	case 1:
		identification = strings.TrimSpace(args[0])
	default:
		return errors.New("usage: coven-signin forgot <email>")
	}

	return a.report(a.orch.Forgotten(ctx, identification))
}

func (a *app) cmdLogout(ctx context.Context) error {
	sess, err := a.restore(ctx)
	if err != nil {
		return err
	}
	if err := a.sessions.Invalidate(ctx); err != nil {
		return err
	}

	if sess == nil {
		fmt.Fprintln(a.out, color.YellowString("Not signed in"))
		return nil
	}
	fmt.Fprintf(a.out, "%s Signed out %s\n", color.GreenString("✓"), sess.Subject)
	return nil
}

func (a *app) cmdToken(ctx context.Context) error {
	sess, err := a.restore(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return errors.New("not signed in, run `coven-signin login` first")
	}
	fmt.Fprintln(a.out, sess.AccessToken)
	return nil
}

func (a *app) cmdStatus(ctx context.Context) error {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	fmt.Fprintf(a.out, "%s %s\n", gray.Sprint("Server:"), a.cfg.Server.URL)

	sess, err := a.restore(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Fprintf(a.out, "%s %s\n", gray.Sprint("Session:"), yellow.Sprint("not signed in"))
	} else {
		fmt.Fprintf(a.out, "%s %s\n", gray.Sprint("Session:"), green.Sprint(sess.Subject))
		if !sess.ExpiresAt.IsZero() {
			fmt.Fprintf(a.out, "%s %s (in %s)\n", gray.Sprint("Expires:"),
				sess.ExpiresAt.Local().Format(time.RFC1123),
				time.Until(sess.ExpiresAt).Round(time.Minute))
		}
	}

	if err := a.settings.Fetch(ctx); err != nil {
		fmt.Fprintf(a.out, "%s %s\n", gray.Sprint("API:"), yellow.Sprintf("unreachable (%v)", err))
		a.notes.ShowAPIError(err, notify.Options{})
		return errWorkflowFailed
	}
	title, _ := a.settings.Get("title")
	fmt.Fprintf(a.out, "%s %s %s\n", gray.Sprint("API:"), green.Sprint("ok"), title)

	if a.cfg.Server.GRPCAddr == "" {
		return nil
	}
	status, err := a.grpcHealth(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "%s %s\n", gray.Sprint("gRPC:"), yellow.Sprintf("unavailable (%v)", err))
		return errWorkflowFailed
	}
	fmt.Fprintf(a.out, "%s %s\n", gray.Sprint("gRPC:"), green.Sprint(status))
	return nil
}

// grpcHealth checks the server's gRPC health service, presenting the stored
// access token when there is one.
func (a *app) grpcHealth(ctx context.Context) (string, error) {
	conn, err := grpc.NewClient(a.cfg.Server.GRPCAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(authorizer.NewPerRPCCredentials(a.sessions, false)),
	)
	if err != nil {
		return "", fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Server.Timeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return "", err
	}
	return resp.GetStatus().String(), nil
}

// report renders a workflow result. Alerts were already rendered by the
// notification sink; the flow error and field errors are printed here.
func (a *app) report(res signin.Result) error {
	if res.Dropped {
		return errBusy
	}
	if res.OK() {
		return nil
	}

	if res.FlowError != "" {
		fmt.Fprintf(a.out, "%s %s\n", color.RedString("✗"), res.FlowError)
	}
	for _, fe := range append(res.ValidationErrors, res.FieldErrors...) {
		fmt.Fprintf(a.out, "  %s %s\n", color.YellowString(fieldLabel(fe.Field)+":"), fieldMessage(fe))
	}
	a.logger.Debug("workflow failed", "state", res.State.String(), "reason", res.Reason.String())
	return errWorkflowFailed
}

func fieldLabel(field string) string {
	switch field {
	case signin.FieldIdentification:
		return "email"
	case signin.FieldPassword:
		return "password"
	default:
		return field
	}
}

// fieldMessage falls back to a generic hint for fields flagged without text.
func fieldMessage(fe signin.FieldError) string {
	if fe.Message != "" {
		return fe.Message
	}
	switch fe.Field {
	case signin.FieldIdentification:
		return "no account with this email"
	case signin.FieldPassword:
		return "incorrect password"
	default:
		return "invalid value"
	}
}
