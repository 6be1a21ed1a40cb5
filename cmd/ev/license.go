package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ev-go/internal/app"
	"ev-go/internal/ev"
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Manage the vault license",
}

var licenseInstallCmd = &cobra.Command{
	Use:   "install FILE",
	Short: "Install a signed license file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("InstallLicense", func(a *app.EVApp) error {
			st, err := a.InstallLicense(args[0])
			if st != nil {
				printLicense(st)
			}
			return err
		})
	},
}

var licenseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the installed license",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withVault("LicenseStatus", func(a *app.EVApp) error {
			st, err := a.LicenseStatus()
			if err != nil {
				return err
			}
			if !st.Installed {
				fmt.Println("No license installed.")
				return nil
			}
			printLicense(st)
			return nil
		})
	},
}

func printLicense(st *ev.LicenseStatus) {
	valid := "no"
	if st.Valid {
		valid = "yes"
	}
	fmt.Printf("License:   %s\n", st.LicenseID)
	fmt.Printf("Issued to: %s\n", st.IssuedTo)
	fmt.Printf("Features:  %s\n", strings.Join(st.Features, ", "))
	fmt.Printf("Status:    %s\n", st.VerificationStatus)
	fmt.Printf("Valid:     %s\n", valid)
}

func init() {
	licenseCmd.AddCommand(licenseInstallCmd)
	licenseCmd.AddCommand(licenseStatusCmd)

	rootCmd.AddCommand(licenseCmd)
}
