package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/complyscan/pkg/analysis"
	"github.com/user/complyscan/pkg/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Run: func(cmd *cobra.Command, args []string) {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("Welcome to complyscan Setup")
		fmt.Println("---------------------------")

		// 1. Enter API key
		fmt.Println("Step 1: Enter your Gemini API key")
		fmt.Print("> ")
		scanner.Scan()
		apiKey := strings.TrimSpace(scanner.Text())
		if apiKey == "" {
			fmt.Println("API key cannot be empty.")
			return
		}

		// 2. Fetch models
		fmt.Println("\nStep 2: Validating key and fetching available models...")
		ctx := context.Background()

		tempProvider, err := analysis.NewGeminiProvider(ctx, apiKey, "", "", 0)
		if err != nil {
			fmt.Printf("Error initializing backend: %v\n", err)
			return
		}
		defer tempProvider.Close()

		models, err := tempProvider.ListModels(ctx)
		var selectedModel string

		if err != nil {
			fmt.Printf("Warning: Could not fetch models from API: %v\n", err)
			fmt.Println("Please enter a model name manually (e.g., 'gemini-1.5-flash'):")
			fmt.Print("> ")
			scanner.Scan()
			selectedModel = strings.TrimSpace(scanner.Text())
		} else {
			fmt.Printf("Successfully retrieved %d models.\n", len(models))
			for i, m := range models {
				fmt.Printf("%d. %s\n", i+1, m)
			}
			fmt.Print("Select model (number) > ")
			scanner.Scan()
			selStr := strings.TrimSpace(scanner.Text())
			selIdx, err := strconv.Atoi(selStr)
			if err != nil || selIdx < 1 || selIdx > len(models) {
				fmt.Println("Invalid selection. Using first available model.")
				selectedModel = models[0]
			} else {
				selectedModel = models[selIdx-1]
			}
		}

		// 3. Budget ceilings
		fmt.Println("\nStep 3: Budget ceilings (press Enter for defaults)")
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		fmt.Printf("Max AI calls per scan [%d] > ", cfg.MaxCalls)
		scanner.Scan()
		if v := strings.TrimSpace(scanner.Text()); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				cfg.MaxCalls = n
			}
		}
		fmt.Printf("Max cost per scan in USD [%.2f] > ", cfg.MaxCostUSD)
		scanner.Scan()
		if v := strings.TrimSpace(scanner.Text()); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				cfg.MaxCostUSD = f
			}
		}

		// 4. Save configuration
		cfg.SelectedProvider = "gemini"
		cfg.SelectedModel = selectedModel
		cfg.SetAPIKey("gemini", apiKey)

		if err := config.SaveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}

		fmt.Println("---------------------------")
		fmt.Println("Setup Complete!")
		fmt.Printf("Model:     %s\n", selectedModel)
		fmt.Printf("Budget:    %d calls, $%.2f per scan\n", cfg.MaxCalls, cfg.MaxCostUSD)
		fmt.Println("You can now run 'complyscan scan'")
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
