package cmd

import (
	"fmt"
	"os"

	"github.com/mabhi256/objwire/internal/wire/model"
	"github.com/mabhi256/objwire/internal/wire/reader"
	"github.com/mabhi256/objwire/internal/wire/session"
	"github.com/mabhi256/objwire/utils"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:               "inspect <file>",
	Short:             "Print a stream's header, metadata, and type stamps",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: utils.CompleteFilesByExtension([]string{".owire"}, false),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		h, meta, cr, err := session.OpenRawReader(f)
		if err != nil {
			return fmt.Errorf("reading header: %w", err)
		}
		printHeader(h, meta)

		rep, err := reader.Dump(cr, preservationFromHeader(h))
		if err != nil {
			return fmt.Errorf("walking object graph: %w", err)
		}
		printReport(rep)
		return nil
	},
}

func preservationFromHeader(h model.Header) model.ReferencePreservation {
	if h.ReferencesPreserved {
		return model.Preserve
	}
	return model.DoNotPreserve
}

func printHeader(h model.Header, meta []byte) {
	fmt.Println(utils.TitleStyle.Render("objwire stream"))
	fmt.Println(utils.FormatKeyValue("version", fmt.Sprintf("%d", h.Version), 24))
	fmt.Println(utils.FormatKeyValue("references preserved", fmt.Sprintf("%v", h.ReferencesPreserved), 24))
	fmt.Println(utils.FormatKeyValue("type stamping enabled", fmt.Sprintf("%v", h.TypeStampingEnabled), 24))
	if len(meta) > 0 {
		fmt.Println(utils.FormatKeyValue("metadata", fmt.Sprintf("%q", meta), 24))
	}
	fmt.Println()
}

func printReport(rep *reader.Report) {
	fmt.Println(utils.HeaderStyle.Render(fmt.Sprintf(" %d type(s), %d object(s) ", len(rep.Stamps), rep.TotalObjects)))
	for _, s := range rep.Stamps {
		count := rep.ObjectCounts[s.TypeID]
		line := fmt.Sprintf("  #%-4d %-40s %d field(s)  %s", s.TypeID, s.Name, len(s.Fields),
			utils.CreateMetricDisplay("instances", fmt.Sprintf("%d", count), "", utils.InfoColor))
		fmt.Println(line)
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
