package cmd

import (
	"fmt"

	"github.com/mabhi256/objwire/internal/wire/model"
	"github.com/mabhi256/objwire/internal/wire/session"
	"github.com/mabhi256/objwire/utils"
	"github.com/spf13/cobra"
)

type roundtripAddress struct {
	City string
	Zip  string
}

type roundtripPerson struct {
	Name    string
	Age     int32
	Address *roundtripAddress
	Tags    []string
	Scores  map[string]int32
	Friend  *roundtripPerson
}

var roundtripCmd = &cobra.Command{
	Use:   "roundtrip",
	Short: "Build a sample cyclic graph, serialize and deserialize it, and report the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoundtrip()
	},
}

func runRoundtrip() error {
	fmt.Println("🔧 Building sample graph...")
	a := &roundtripPerson{
		Name:    "Ada",
		Age:     36,
		Address: &roundtripAddress{City: "London", Zip: "W1"},
		Tags:    []string{"mathematician", "programmer"},
		Scores:  map[string]int32{"algebra": 100, "analysis": 97},
	}
	b := &roundtripPerson{Name: "Charles", Age: 41}
	a.Friend = b
	b.Friend = a // a cycle

	opts := session.Options{ReferencePreservation: model.Preserve}

	fmt.Println("📦 Serializing...")
	data, err := session.Serialize(a, opts)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	fmt.Printf("   %d bytes written\n", len(data))

	fmt.Println("📤 Deserializing...")
	got, err := session.Deserialize[roundtripPerson](data, opts)
	if err != nil {
		return fmt.Errorf("deserialize: %w", err)
	}

	ok := true
	check := func(label string, pass bool) {
		if pass {
			fmt.Println("✅ " + label)
		} else {
			fmt.Println("🔴 " + label)
			ok = false
		}
	}

	check("scalar fields round-trip", got.Name == a.Name && got.Age == a.Age)
	check("nested object round-trips", got.Address != nil && got.Address.City == a.Address.City)
	check("sequence field round-trips", len(got.Tags) == len(a.Tags))
	check("mapping field round-trips", len(got.Scores) == len(a.Scores))
	check("cycle preserved (Friend.Friend is the root itself)", got.Friend != nil && got.Friend.Friend == got)

	if _, err := session.Deserialize[roundtripPerson](data[:len(data)-1], opts); err == nil {
		check("truncated stream is rejected (byte conservation)", false)
	} else {
		check("truncated stream is rejected (byte conservation)", true)
	}

	fmt.Println()
	if ok {
		fmt.Println(utils.GoodStyle.Render("all checks passed"))
		return nil
	}
	return fmt.Errorf("one or more round-trip checks failed")
}

func init() {
	rootCmd.AddCommand(roundtripCmd)
}
