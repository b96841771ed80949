package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/facultyhub/internal/store"
)

func deleteProfessorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-professor [professor-id]",
		Short: "Delete a professor and, if unused, their branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("delete-professor: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			res, err := newEngine(st, logger).DeleteProfessor(ctx, args[0])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("delete-professor: professor %s not found", args[0])
				}
				return fmt.Errorf("delete-professor: %w", err)
			}

			fmt.Printf("Deleted professor %s\n", res.ProfessorID)
			if res.RemovedBranch != "" {
				fmt.Printf("Removed branch %s (no remaining professors)\n", res.RemovedBranch)
			}
			return nil
		},
	}
}

func deleteDepartmentCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-department [id-or-name]",
		Short: "Delete a department with all of its branches and professors (irreversible)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("delete-department: this permanently deletes every branch and professor of %q; rerun with --yes", args[0])
			}

			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("delete-department: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			res, err := newEngine(st, logger).DeleteDepartment(ctx, args[0])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("delete-department: department %s not found", args[0])
				}
				return fmt.Errorf("delete-department: %w", err)
			}

			mode := "best-effort"
			if res.Atomic {
				mode = "atomic"
			}
			fmt.Printf("Deleted department %s (%s): %d professors, %d branches\n",
				res.DepartmentID, mode, res.ProfessorsDeleted, res.BranchesDeleted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the irreversible delete")
	return cmd
}
