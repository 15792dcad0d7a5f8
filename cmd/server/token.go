package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/sorting-hall/internal/config"
	"github.com/iliyamo/sorting-hall/internal/utils"
)

var (
	tokenTableID  int64
	tokenOperator bool
	tokenTTLMin   int
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for a kiosk or the operator",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenOperator == (tokenTableID > 0) {
			return errors.New("use exactly one of --operator or --table-id")
		}
		tc := config.LoadTokenConfig()
		ttl := tc.AccessTTLMin
		if tokenTTLMin > 0 {
			ttl = tokenTTLMin
		}
		cl := utils.OperatorClaims()
		if tokenTableID > 0 {
			cl = utils.TableClaims(tokenTableID)
		}
		tok, err := utils.NewAccessToken(tc.JWTSecret, cl, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print the bcrypt hash for OPERATOR_PASSWORD_HASH",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var plain string
		if len(args) == 1 {
			plain = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			plain = strings.TrimRight(line, "\r\n")
		}
		hash, err := utils.HashPassword(plain, 0)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var genSecretCmd = &cobra.Command{
	Use:   "gen-secret",
	Short: "Print a random secret for JWT_SECRET or FLEET_CALLBACK_TOKEN",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := utils.RandomHex(32)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenTableID, "table-id", 0, "issue a kiosk token bound to this table")
	tokenCmd.Flags().BoolVar(&tokenOperator, "operator", false, "issue an operator token")
	tokenCmd.Flags().IntVar(&tokenTTLMin, "ttl", 0, "lifetime in minutes (default $ACCESS_TOKEN_TTL_MIN)")
	rootCmd.AddCommand(tokenCmd, hashPasswordCmd, genSecretCmd)
}
