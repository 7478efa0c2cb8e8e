package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/huddle/internal/config"
	"github.com/vovakirdan/huddle/internal/store/sqlite"
)

var (
	roomDB      string
	roomName    string
	roomMembers []string
)

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Manage rooms and their members",
}

var roomCreateCmd = &cobra.Command{
	Use:   "create <room-id>",
	Short: "Create a room and authorize its initial members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		name := roomName
		if name == "" {
			name = args[0]
		}
		room, err := st.CreateRoom(ctx, args[0], name)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		for _, member := range roomMembers {
			if err := st.AddMember(ctx, room.ID, member); err != nil {
				return fmt.Errorf("add member %s: %w", member, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created room %s (%s) with %d member(s)\n", room.ID, room.Name, len(roomMembers))
		return nil
	},
}

var roomAddMemberCmd = &cobra.Command{
	Use:   "add-member <room-id> <user-id>...",
	Short: "Authorize users for an existing room",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		if _, err := st.GetRoom(ctx, args[0]); err != nil {
			return fmt.Errorf("room %s: %w", args[0], err)
		}
		for _, member := range args[1:] {
			if err := st.AddMember(ctx, args[0], member); err != nil {
				return fmt.Errorf("add member %s: %w", member, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s\n", member, args[0])
		}
		return nil
	},
}

var roomRemoveMemberCmd = &cobra.Command{
	Use:   "remove-member <room-id> <user-id>",
	Short: "Revoke a user's membership",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.RemoveMember(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("remove member: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", args[1], args[0])
		return nil
	},
}

func init() {
	roomCmd.PersistentFlags().StringVar(&roomDB, "db", "", "SQLite database path (defaults to database_path from config)")
	roomCreateCmd.Flags().StringVar(&roomName, "name", "", "display name")
	roomCreateCmd.Flags().StringSliceVar(&roomMembers, "member", nil, "user id to authorize (repeatable)")

	roomCmd.AddCommand(roomCreateCmd, roomAddMemberCmd, roomRemoveMemberCmd)
}

func openStore() (*sqlite.SQLiteStore, error) {
	cfg, _, err := loadConfig(config.Config{DatabasePath: roomDB})
	if err != nil {
		return nil, err
	}
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
