package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dom/product-console/internal/client"
	"github.com/dom/product-console/internal/config"
	"github.com/dom/product-console/internal/logger"
	"github.com/dom/product-console/internal/session"
	"github.com/google/uuid"
)

var catalog = []struct {
	name        string
	description string
	price       float64
}{
	{"Desk Lamp", "Adjustable brass desk lamp", 39.99},
	{"Oak Table", "Solid oak dining table", 499.00},
	{"Wool Rug", "Hand-woven 2x3m rug", 249.50},
	{"Ceramic Mug", "350ml stoneware mug", 12.00},
	{"Bookshelf", "Five-shelf walnut bookcase", 189.00},
	{"Floor Cushion", "Linen floor cushion", 45.00},
	{"Wall Clock", "Silent sweep wall clock", 29.95},
	{"Throw Blanket", "Merino throw blanket", 89.00},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "full":
		fullCmd(args)
	case "users":
		usersCmd(args)
	case "products":
		productsCmd(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Seed - Development tool for populating the product console with demo data

USAGE:
  seed <command> [options]

COMMANDS:
  full      Create users and products, then edit some products to build audit history
  users     Register fake user accounts
  products  Create products as the admin
  help      Show this help message

ENVIRONMENT:
  API_URL          Backend API URL (default: http://localhost:3001/api)
  ADMIN_EMAIL      Admin account used for product writes (default: admin@example.com)
  ADMIN_PASSWORD   Admin password (default: admin123)

EXAMPLES:
  # Three users, eight products, a few edits
  seed full

  # Register 10 more users
  seed users --count=10

  # Create 20 products
  seed products --count=20`)
}

// newClient returns an API client backed by an in-memory session, so seeding
// never touches the pmctl session file.
func newClient(verbose bool) *client.Client {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	lg := logger.NewCLI(verbose)
	sessions := session.NewController(session.NewMemoryStore(), session.DefaultOptions(), lg)
	return client.New(cfg.APIURL, sessions, lg)
}

func adminLogin(ctx context.Context, api *client.Client) {
	email := getEnv("ADMIN_EMAIL", "admin@example.com")
	password := getEnv("ADMIN_PASSWORD", "admin123")

	fmt.Print("Logging in as admin... ")
	resp, err := api.Login(ctx, email, password)
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK (%s)\n", resp.User.Email)
}

func fullCmd(args []string) {
	fs := flag.NewFlagSet("full", flag.ExitOnError)
	users := fs.Int("users", 3, "Number of fake users to register")
	edits := fs.Int("edits", 3, "Number of products to edit afterwards")
	verbose := fs.Bool("v", false, "Log requests")
	fs.Parse(args)

	ctx := context.Background()

	fmt.Println("=== Seed: Full ===")
	fmt.Println()

	registerUsers(ctx, *users, *verbose)

	api := newClient(*verbose)
	adminLogin(ctx, api)
	ids := createProducts(ctx, api, len(catalog))

	if *edits > len(ids) {
		*edits = len(ids)
	}
	fmt.Println()
	fmt.Printf("Editing %d products:\n", *edits)
	for i := 0; i < *edits; i++ {
		price := catalog[i].price * 0.9
		p, err := api.UpdateProduct(ctx, ids[i], client.ProductInput{Price: &price})
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED: %v\n", i+1, *edits, err)
			os.Exit(1)
		}
		fmt.Printf("  [%d/%d] %s now %.2f\n", i+1, *edits, p.Name, p.Price)
	}

	stats, err := api.AuditStats(ctx)
	if err != nil {
		fmt.Printf("Warning: Failed to load audit stats: %v\n", err)
		return
	}
	fmt.Println()
	fmt.Println("=========================================")
	fmt.Printf("  SEEDED. %d audit entries recorded.\n", stats.TotalLogs)
	fmt.Println("=========================================")
}

func usersCmd(args []string) {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	count := fs.Int("count", 5, "Number of fake users to register")
	verbose := fs.Bool("v", false, "Log requests")
	fs.Parse(args)

	if *count < 1 || *count > 100 {
		fmt.Println("Error: --count must be between 1 and 100")
		os.Exit(1)
	}
	registerUsers(context.Background(), *count, *verbose)
}

func productsCmd(args []string) {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	count := fs.Int("count", len(catalog), "Number of products to create")
	verbose := fs.Bool("v", false, "Log requests")
	fs.Parse(args)

	if *count < 1 || *count > 500 {
		fmt.Println("Error: --count must be between 1 and 500")
		os.Exit(1)
	}

	ctx := context.Background()
	api := newClient(*verbose)
	adminLogin(ctx, api)
	createProducts(ctx, api, *count)
}

func registerUsers(ctx context.Context, count int, verbose bool) {
	fmt.Printf("Registering %d users:\n", count)
	for i := 1; i <= count; i++ {
		// A fresh client per user keeps each registration's session separate.
		api := newClient(verbose)
		suffix := uuid.NewString()[:8]
		resp, err := api.Register(ctx, client.RegisterRequest{
			Email:     fmt.Sprintf("user_%s@example.com", suffix),
			Password:  "Password1",
			FirstName: fmt.Sprintf("Demo%d", i),
			LastName:  "User",
		})
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED to register: %v\n", i, count, err)
			os.Exit(1)
		}
		fmt.Printf("  [%d/%d] %s registered\n", i, count, resp.User.Email)
	}
}

func createProducts(ctx context.Context, api *client.Client, count int) []uuid.UUID {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	fmt.Println()
	fmt.Printf("Creating %d products:\n", count)
	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		item := catalog[i%len(catalog)]
		name := item.name
		if i >= len(catalog) {
			name = fmt.Sprintf("%s #%d", item.name, i/len(catalog)+1)
		}
		price := item.price + float64(rng.Intn(500))/100
		description := item.description

		p, err := api.CreateProduct(ctx, client.ProductInput{Name: &name, Description: &description, Price: &price})
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED: %v\n", i+1, count, err)
			os.Exit(1)
		}
		ids = append(ids, p.ID)
		fmt.Printf("  [%d/%d] %s (%.2f)\n", i+1, count, p.Name, p.Price)
	}
	return ids
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
