package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dom/product-console/internal/client"
	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/session"
	"github.com/google/uuid"
)

// authorize runs the lifecycle check through the guard and prints the reason
// when the route is refused.
func (a *app) authorize(path string, role domain.Role) error {
	d := a.guard.Authorize(session.Route{Path: path, RequiredRole: role})
	if d.Kind == session.Allow {
		if _, err := a.sessions.RecordActivity(); err != nil {
			a.lg.Warnw("record activity failed", "error", err)
		}
		return nil
	}

	if msg := a.sessions.Message(); msg != "" && !a.isLive() {
		fmt.Fprintln(a.out, msg)
	}
	fmt.Fprintln(a.out, d.Message())
	if d.Kind == session.RedirectLogin {
		fmt.Fprintf(a.out, "Run 'pmctl login' to continue to %s.\n", d.From)
	}
	return errReported
}

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	// The flag package has already printed the problem or the usage.
	if err := fs.Parse(args); err != nil {
		return errReported
	}
	return nil
}

// splitID takes a leading positional id so flags may follow it.
func splitID(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", args
	}
	return args[0], args[1:]
}

func parseID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s id is required", what)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return id, nil
}

// Auth commands

func (a *app) loginCmd(ctx context.Context, args []string) error {
	fs := a.newFlagSet("login")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("--email and --password are required")
	}

	resp, err := a.api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s. Signed in as %s (%s).\n", resp.Message, resp.User.Email, resp.User.Role)
	return nil
}

func (a *app) registerCmd(ctx context.Context, args []string) error {
	fs := a.newFlagSet("register")
	var req client.RegisterRequest
	fs.StringVar(&req.Email, "email", "", "Account email")
	fs.StringVar(&req.Password, "password", "", "Password (6+ chars, mixed case and a digit)")
	fs.StringVar(&req.FirstName, "first", "", "First name")
	fs.StringVar(&req.LastName, "last", "", "Last name")
	fs.StringVar(&req.Role, "role", "", "Role (admin or user)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	resp, err := a.api.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s. Signed in as %s (%s).\n", resp.Message, resp.User.Email, resp.User.Role)
	return nil
}

func (a *app) logoutCmd() error {
	if err := a.sessions.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *app) whoamiCmd(ctx context.Context) error {
	if err := a.authorize("/me", ""); err != nil {
		return err
	}
	user, err := a.api.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s <%s>\nRole: %s\nID:   %s\n", user.FirstName, user.LastName, user.Email, user.Role, user.ID)
	return nil
}

func (a *app) statusCmd() error {
	state := a.sessions.State()
	fmt.Fprintf(a.out, "Session: %s\n", state)
	fmt.Fprintf(a.out, "File:    %s\n", a.store.Path())

	s, err := a.store.Load()
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	fmt.Fprintf(a.out, "User:    %s (%s)\n", s.User.Email, s.User.Role)
	fmt.Fprintf(a.out, "Expires: %s", s.Expiry.Local().Format(time.RFC1123))
	if remaining := time.Until(s.Expiry); remaining > 0 {
		fmt.Fprintf(a.out, " (in %s)", remaining.Round(time.Second))
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *app) extendCmd() error {
	if err := a.authorize("/session", ""); err != nil {
		return err
	}
	expiry, err := a.sessions.Extend()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Session extended until %s.\n", expiry.Local().Format(time.RFC1123))
	return nil
}

// Product commands

func (a *app) productsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: pmctl products list|get|create|update|delete")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return a.productsList(ctx, rest)
	case "get":
		return a.productsGet(ctx, rest)
	case "create":
		return a.productsCreate(ctx, rest)
	case "update":
		return a.productsUpdate(ctx, rest)
	case "delete":
		return a.productsDelete(ctx, rest)
	default:
		return fmt.Errorf("unknown products command: %s", sub)
	}
}

func (a *app) productsList(ctx context.Context, args []string) error {
	fs := a.newFlagSet("products list")
	var q client.ProductQuery
	fs.StringVar(&q.Search, "search", "", "Match name or description")
	fs.StringVar(&q.SortBy, "sort", "", "Sort field: name, price, created_at, updated_at")
	fs.StringVar(&q.SortOrder, "order", "", "Sort order: asc or desc")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.authorize("/products", ""); err != nil {
		return err
	}

	list, err := a.api.ListProducts(ctx, q)
	if err != nil {
		return err
	}
	printProducts(a.out, list.Products)
	fmt.Fprintf(a.out, "\n%d product(s)\n", list.Total)
	return nil
}

func (a *app) productsGet(ctx context.Context, args []string) error {
	raw, _ := splitID(args)
	id, err := parseID(raw, "product")
	if err != nil {
		return err
	}
	if err := a.authorize("/products/"+raw, ""); err != nil {
		return err
	}

	p, err := a.api.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	printProduct(a.out, p)
	return nil
}

func (a *app) productsCreate(ctx context.Context, args []string) error {
	fs := a.newFlagSet("products create")
	name := fs.String("name", "", "Product name")
	description := fs.String("description", "", "Product description")
	price := fs.Float64("price", 0, "Price")
	image := fs.String("image", "", "Image URL")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.authorize("/products/new", domain.RoleAdmin); err != nil {
		return err
	}

	in := client.ProductInput{Name: name, Description: description}
	set := visited(fs)
	if set["price"] {
		in.Price = price
	}
	if *image != "" {
		in.Image = image
	}

	p, err := a.api.CreateProduct(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Product created successfully.")
	printProduct(a.out, p)
	return nil
}

func (a *app) productsUpdate(ctx context.Context, args []string) error {
	raw, rest := splitID(args)
	id, err := parseID(raw, "product")
	if err != nil {
		return err
	}

	fs := a.newFlagSet("products update")
	name := fs.String("name", "", "Product name")
	description := fs.String("description", "", "Product description")
	price := fs.Float64("price", 0, "Price")
	image := fs.String("image", "", "Image URL")
	if err := parseFlags(fs, rest); err != nil {
		return err
	}

	// Only flags given on the command line are sent.
	var in client.ProductInput
	set := visited(fs)
	if set["name"] {
		in.Name = name
	}
	if set["description"] {
		in.Description = description
	}
	if set["price"] {
		in.Price = price
	}
	if set["image"] {
		in.Image = image
	}
	if len(set) == 0 {
		return errors.New("nothing to update: pass at least one of --name, --description, --price, --image")
	}

	if err := a.authorize("/products/"+raw+"/edit", domain.RoleAdmin); err != nil {
		return err
	}
	p, err := a.api.UpdateProduct(ctx, id, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Product updated successfully.")
	printProduct(a.out, p)
	return nil
}

func (a *app) productsDelete(ctx context.Context, args []string) error {
	raw, _ := splitID(args)
	id, err := parseID(raw, "product")
	if err != nil {
		return err
	}
	if err := a.authorize("/products/"+raw, domain.RoleAdmin); err != nil {
		return err
	}
	if err := a.api.DeleteProduct(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Product deleted successfully.")
	return nil
}

func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// Audit commands

func (a *app) auditCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: pmctl audit list|get|user|stats|watch")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return a.auditList(ctx, rest)
	case "get":
		return a.auditGet(ctx, rest)
	case "user":
		return a.auditUser(ctx, rest)
	case "stats":
		return a.auditStats(ctx)
	case "watch":
		return a.auditWatch(ctx)
	default:
		return fmt.Errorf("unknown audit command: %s", sub)
	}
}

func (a *app) auditList(ctx context.Context, args []string) error {
	fs := a.newFlagSet("audit list")
	var q client.AuditQuery
	fs.IntVar(&q.Page, "page", 0, "Page number")
	fs.IntVar(&q.Limit, "limit", 0, "Entries per page (max 100)")
	fs.StringVar(&q.UserID, "user", "", "Only entries by this user id")
	fs.StringVar(&q.Action, "action", "", "CREATE, UPDATE, DELETE, LOGIN or REGISTER")
	fs.StringVar(&q.EntityType, "entity", "", "USER or PRODUCT")
	fs.StringVar(&q.DateFrom, "from", "", "Earliest date (YYYY-MM-DD or RFC3339)")
	fs.StringVar(&q.DateTo, "to", "", "Latest date (YYYY-MM-DD or RFC3339)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.authorize("/audit", domain.RoleAdmin); err != nil {
		return err
	}

	page, err := a.api.ListAudit(ctx, q)
	if err != nil {
		return err
	}
	printAuditPage(a.out, page)
	return nil
}

func (a *app) auditGet(ctx context.Context, args []string) error {
	raw, _ := splitID(args)
	id, err := parseID(raw, "audit log")
	if err != nil {
		return err
	}
	if err := a.authorize("/audit/"+raw, domain.RoleAdmin); err != nil {
		return err
	}

	entry, err := a.api.GetAudit(ctx, id)
	if err != nil {
		return err
	}
	printAuditEntry(a.out, entry)
	return nil
}

func (a *app) auditUser(ctx context.Context, args []string) error {
	raw, rest := splitID(args)
	userID, err := parseID(raw, "user")
	if err != nil {
		return err
	}
	fs := a.newFlagSet("audit user")
	page := fs.Int("page", 0, "Page number")
	limit := fs.Int("limit", 0, "Entries per page (max 100)")
	if err := parseFlags(fs, rest); err != nil {
		return err
	}
	if err := a.authorize("/audit/user/"+raw, domain.RoleAdmin); err != nil {
		return err
	}

	result, err := a.api.ListUserAudit(ctx, userID, *page, *limit)
	if err != nil {
		return err
	}
	printAuditPage(a.out, result)
	return nil
}

func (a *app) auditStats(ctx context.Context) error {
	if err := a.authorize("/audit/stats", domain.RoleAdmin); err != nil {
		return err
	}
	stats, err := a.api.AuditStats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Total entries (30 days): %d\n\n", stats.TotalLogs)
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tCOUNT")
	for _, s := range stats.ActionStats {
		fmt.Fprintf(w, "%s\t%d\n", s.Key, s.Count)
	}
	fmt.Fprintln(w, "\t")
	fmt.Fprintln(w, "ENTITY\tCOUNT")
	for _, s := range stats.EntityStats {
		fmt.Fprintf(w, "%s\t%d\n", s.Key, s.Count)
	}
	fmt.Fprintln(w, "\t")
	fmt.Fprintln(w, "DATE\tCOUNT")
	for _, d := range stats.DailyActivity {
		fmt.Fprintf(w, "%s\t%d\n", d.Date, d.Count)
	}
	return w.Flush()
}

// auditWatch streams new entries until interrupted or the session expires.
func (a *app) auditWatch(ctx context.Context) error {
	if err := a.authorize("/audit/stream", domain.RoleAdmin); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.stopWatch = cancel
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.stopWatch = nil
		a.mu.Unlock()
	}()

	a.goLive(ctx)
	defer a.endLive()

	fmt.Fprintln(a.out, "Watching audit feed. Press Ctrl+C to stop.")
	err := a.api.WatchAudit(ctx, func(entry *domain.AuditEntry) {
		fmt.Fprintf(a.out, "%s  %-8s %-7s %s  %s\n",
			entry.Timestamp.Local().Format(time.TimeOnly), entry.Action, entry.EntityType, entry.ActorEmail, deref(entry.Details))
	})
	if err != nil {
		return err
	}
	if msg := a.sessions.Message(); msg != "" {
		return errReported
	}
	return nil
}

// Output

func printProducts(out io.Writer, products []domain.Product) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tUPDATED")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", p.ID, p.Name, p.Price, p.UpdatedAt.Local().Format(time.DateTime))
	}
	w.Flush()
}

func printProduct(out io.Writer, p *domain.Product) {
	fmt.Fprintf(out, "ID:          %s\n", p.ID)
	fmt.Fprintf(out, "Name:        %s\n", p.Name)
	fmt.Fprintf(out, "Description: %s\n", p.Description)
	fmt.Fprintf(out, "Price:       %.2f\n", p.Price)
	if p.Image != nil {
		fmt.Fprintf(out, "Image:       %s\n", *p.Image)
	}
	fmt.Fprintf(out, "Created:     %s\n", p.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Updated:     %s\n", p.UpdatedAt.Local().Format(time.DateTime))
}

func printAuditPage(out io.Writer, page *client.AuditPage) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tACTION\tENTITY\tACTOR\tDETAILS")
	for _, e := range page.AuditLogs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Timestamp.Local().Format(time.DateTime), e.Action, e.EntityType, e.ActorEmail, deref(e.Details))
	}
	w.Flush()

	p := page.Pagination
	fmt.Fprintf(out, "\nPage %d of %d (%d entries)\n", p.CurrentPage, p.TotalPages, p.TotalItems)
}

func printAuditEntry(out io.Writer, e *domain.AuditEntry) {
	fmt.Fprintf(out, "ID:      %s\n", e.ID)
	fmt.Fprintf(out, "Time:    %s\n", e.Timestamp.Local().Format(time.RFC1123))
	fmt.Fprintf(out, "Action:  %s\n", e.Action)
	fmt.Fprintf(out, "Entity:  %s", e.EntityType)
	if e.EntityID != nil {
		fmt.Fprintf(out, " %s", *e.EntityID)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Actor:   %s (%s)\n", e.ActorEmail, e.ActorID)
	if e.Details != nil {
		fmt.Fprintf(out, "Details: %s\n", *e.Details)
	}
	if len(e.Metadata) > 0 {
		fmt.Fprintf(out, "Meta:    %s\n", string(e.Metadata))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
