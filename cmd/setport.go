/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/allbin/go-m3d"
	"github.com/allbin/go-m3d/internal/config"
	"github.com/allbin/go-m3d/serial"
)

// setPortCmd represents the set-port command
var setPortCmd = &cobra.Command{
	Use:   "set-port",
	Short: "Select the serial port to use by default",
	Long: `Pick a port from the detected printers (or all ports with --all) and
save it as the default in the config file. Choose AUTO to go back to
detecting the printer on every run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		sig, err := m3d.ParseSignature(cfg.Signature)
		if err != nil {
			return err
		}
		enum, err := serial.NewEnumerator(cfg.Enumerator)
		if err != nil {
			return err
		}
		ports, err := enum.Ports()
		if err != nil {
			return err
		}

		items := portChoices(filterPorts(ports, sig, all))
		prompt := promptui.Select{
			Label: "Choose what serial port you want to use",
			Items: items,
			Templates: &promptui.SelectTemplates{
				Active:   `▸ {{ .Name | cyan }} {{ .HWID | faint }}`,
				Inactive: `  {{ .Name }} {{ .HWID | faint }}`,
				Selected: `{{ "✓" | green }} {{ .Name }}`,
			},
		}

		i, _, err := prompt.Run()
		if err != nil {
			return fmt.Errorf("you didn't select anything")
		}

		path, err := config.SavePort(v, items[i].Name)
		if err != nil {
			return err
		}
		fmt.Printf("Saved port %s to %s\n", items[i].Name, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setPortCmd)

	setPortCmd.Flags().Bool("all", false, "if set, will show all available ports")
}

type portChoice struct {
	Name string
	HWID string
}

// portChoices lists AUTO first so detection can be restored
func portChoices(ports []serial.PortDetails) []portChoice {
	items := []portChoice{{Name: m3d.AutoPort, HWID: "detect on every run"}}
	for _, p := range ports {
		items = append(items, portChoice{Name: p.Name, HWID: p.HardwareID()})
	}
	return items
}
