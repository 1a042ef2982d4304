package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"HealthIntake/model"
	"HealthIntake/questionnaire"
	"HealthIntake/service"

	"github.com/spf13/cobra"
)

var renderFile string

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Validate a questionnaire JSON file and print the staff message",
	Long: `Reads a questionnaire as the web app submits it
({"type", "language", "formData", "additionalData", "contactData"}),
validates it and prints the Telegram HTML message. Exits with status 1 and
the field errors when the questionnaire is invalid.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var in io.Reader = cmd.InOrStdin()
		if renderFile != "" && renderFile != "-" {
			f, err := os.Open(renderFile)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		catalog, err := questionnaire.Load()
		if err != nil {
			return fmt.Errorf("load questionnaire catalog: %w", err)
		}
		return renderDraft(in, cmd.OutOrStdout(), cmd.ErrOrStderr(), catalog)
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderFile, "file", "f", "", "questionnaire JSON file, stdin when empty or -")
}

var errInvalidQuestionnaire = errors.New("questionnaire is invalid")

func renderDraft(in io.Reader, out, errOut io.Writer, catalog *questionnaire.Catalog) error {
	var d service.Draft
	if err := json.NewDecoder(in).Decode(&d); err != nil {
		return fmt.Errorf("decode questionnaire: %w", err)
	}
	// Preview never touches storage or the chat
	text, fieldErrs, err := service.NewIntake(catalog, nil, nil).Preview(d)
	if err != nil {
		return err
	}
	if len(fieldErrs) > 0 {
		printFieldErrors(errOut, fieldErrs)
		return errInvalidQuestionnaire
	}
	_, err = fmt.Fprintln(out, text)
	return err
}

func printFieldErrors(w io.Writer, errs model.FieldErrors) {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, errs[k])
	}
}
