package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/autotrade/config"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers values collected by the wizard.
type Answers struct {
	DryRun        bool
	SimulateKRW   string
	APIURL        string
	Model         string
	DecisionTimes string
	LedgerPath    string
	WebAddr       string

	// written to the env file, never to yaml
	UpbitAccessKey string
	UpbitSecretKey string
	OpenAIAPIKey   string
}

// DefaultAnswers prefilled wizard values.
func DefaultAnswers() Answers {
	return Answers{
		DryRun:        true,
		SimulateKRW:   "1000000",
		APIURL:        "https://api.openai.com/v1/chat/completions",
		Model:         "o3-mini",
		DecisionTimes: "00:30,04:30,08:30,12:30,16:30,20:30",
		LedgerPath:    "trading_history.sqlite",
		WebAddr:       ":8080",
	}
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("AUTOTRADE CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes configPath and envPath.
func RunTUI(configPath, envPath string) error {
	a := DefaultAnswers()
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("AUTOTRADE CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("BTC/KRW on Upbit, decided by an LLM.\n"))

	fmt.Println(stepStyle.Render("STEP 1: MODE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[bool]().
				Title("How should orders be placed?").
				Options(
					huh.NewOption("Paper trading (no real orders)", true),
					huh.NewOption("Live on Upbit", false),
				).
				Value(&a.DryRun),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 2: ACCOUNT")
	var fields []huh.Field
	if a.DryRun {
		fields = append(fields, huh.NewInput().
			Title("Starting KRW balance").
			Value(&a.SimulateKRW).
			Validate(validatePositive))
	} else {
		fields = append(fields,
			huh.NewInput().
				Title("Upbit access key").
				Value(&a.UpbitAccessKey).
				Validate(notEmpty),
			huh.NewInput().
				Title("Upbit secret key").
				Value(&a.UpbitSecretKey).
				EchoMode(huh.EchoModePassword).
				Validate(notEmpty),
		)
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	screen("STEP 3: LLM")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Chat completions URL").
				Value(&a.APIURL).
				Validate(notEmpty),
			huh.NewInput().
				Title("API key").
				Value(&a.OpenAIAPIKey).
				EchoMode(huh.EchoModePassword).
				Validate(notEmpty),
			huh.NewInput().
				Title("Model").
				Value(&a.Model).
				Validate(notEmpty),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("STEP 4: SCHEDULE & STORAGE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Decision times").
				Description("Comma separated HH:MM in Asia/Seoul").
				Value(&a.DecisionTimes).
				Validate(validateTimes),
			huh.NewInput().
				Title("Ledger database").
				Value(&a.LedgerPath).
				Validate(notEmpty),
			huh.NewInput().
				Title("Dashboard address").
				Value(&a.WebAddr).
				Validate(validateAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	screen("FINAL CONFIRMATION")
	mode := "live"
	if a.DryRun {
		mode = "paper (" + a.SimulateKRW + " KRW)"
	}
	summary := fmt.Sprintf("Mode: %s\nModel: %s\nDecisions at: %s\nLedger: %s\n",
		mode, a.Model, a.DecisionTimes, a.LedgerPath)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	if err := Save(a, configPath, envPath); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", configPath)))
	time.Sleep(1500 * time.Millisecond)
	return nil
}

// Save writes the yaml config and merges credentials into the env file.
func Save(a Answers, configPath, envPath string) error {
	data, err := yaml.Marshal(BuildConfig(a))
	if err != nil {
		return errors.Wrap(err, "generate yaml")
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.Wrap(err, "save config file")
	}

	env, err := godotenv.Read(envPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrapf(err, "read env file %s", envPath)
		}
		env = map[string]string{}
	}
	set := func(k, v string) {
		if v != "" {
			env[k] = v
		}
	}
	set("UPBIT_ACCESS_KEY", a.UpbitAccessKey)
	set("UPBIT_SECRET_KEY", a.UpbitSecretKey)
	set("OPENAI_API_KEY", a.OpenAIAPIKey)
	if len(env) == 0 {
		return nil
	}
	if err := godotenv.Write(env, envPath); err != nil {
		return errors.Wrap(err, "save env file")
	}
	return os.Chmod(envPath, 0o600)
}

// BuildConfig maps wizard answers to the yaml representation.
func BuildConfig(a Answers) config.ConfigTmp {
	var c config.ConfigTmp
	c.Pair = "BTC_KRW"
	c.Timezone = "Asia/Seoul"
	c.DryRun = a.DryRun
	c.Schedule.DecisionTimes = splitTimes(a.DecisionTimes)
	c.LLM.APIURL = a.APIURL
	c.LLM.Model = a.Model
	c.Ledger.Path = a.LedgerPath
	c.Web.Addr = a.WebAddr
	if a.DryRun {
		c.Execution.SimulateKRW = a.SimulateKRW
	}
	return c
}

func splitTimes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateTimes(s string) error {
	times := splitTimes(s)
	if len(times) == 0 {
		return fmt.Errorf("at least one time is required")
	}
	for _, t := range times {
		if _, _, err := config.ParseClock(t); err != nil {
			return err
		}
	}
	return nil
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value cannot be empty")
	}
	return nil
}

func validateAddr(s string) error {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return fmt.Errorf("address must be host:port or :port")
	}
	p, err := strconv.Atoi(s[i+1:])
	if err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid port %q", s[i+1:])
	}
	return nil
}
