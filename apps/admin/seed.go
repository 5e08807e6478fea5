package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RouahImad/Project-epg-sub000/core/catalog"
	"github.com/RouahImad/Project-epg-sub000/core/money"
)

// seedFile is the catalog a seed file describes. Entries are matched by name (case-insensitive):
// existing ones are kept as they are.
//
//	program_types:
//	  - name: Engineering
//	taxes:
//	  - name: Insurance
//	    amount: 150.00
//	majors:
//	  - name: Software
//	    type: Engineering
//	    price: "1000.00"
//	    duration: 36
//	    taxes: [Insurance]
type seedFile struct {
	ProgramTypes []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"program_types"`
	Taxes []struct {
		Name        string     `yaml:"name"`
		Amount      yamlAmount `yaml:"amount"`
		Description string     `yaml:"description"`
	} `yaml:"taxes"`
	Majors []struct {
		Name        string     `yaml:"name"`
		Type        string     `yaml:"type"`
		Price       yamlAmount `yaml:"price"`
		Duration    int        `yaml:"duration"`
		Description string     `yaml:"description"`
		Taxes       []string   `yaml:"taxes"`
	} `yaml:"majors"`
}

// yamlAmount reads a money amount from a yaml number or string.
type yamlAmount money.Money

func (a *yamlAmount) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: amount must be a number", value.Line)
	}
	m, err := money.Parse(value.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}
	*a = yamlAmount(m)
	return nil
}

type seedReport struct {
	created, kept int
}

func (r *seedReport) add(created bool) {
	if created {
		r.created++
	} else {
		r.kept++
	}
}

func (cli *commandLine) seedCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load program types, taxes and majors from a yaml file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return errors.Wrap(err, "opening seed file")
			}
			defer func() { _ = f.Close() }()
			return cli.seed(cmd.Context(), f, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "path to the catalog yaml file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (cli *commandLine) seed(ctx context.Context, r io.Reader, out io.Writer) error {
	var sf seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && err != io.EOF {
		return errors.Wrap(err, "decoding seed file")
	}

	var types, taxes, majors seedReport

	typeIDs := make(map[string]string)
	existingTypes, err := cli.catSvc.QueryTypes(ctx)
	if err != nil {
		return errors.Wrap(err, "querying program types")
	}
	for _, mt := range existingTypes {
		typeIDs[key(mt.Name)] = mt.ID
	}
	for _, st := range sf.ProgramTypes {
		nt := catalog.NewMajorType{Name: st.Name, Description: st.Description}
		if err = nt.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "program type %q", st.Name)
		}
		if _, ok := typeIDs[key(nt.Name)]; ok {
			types.add(false)
			continue
		}
		mt, err := cli.catSvc.CreateType(ctx, nt)
		if err != nil {
			return errors.Wrapf(err, "creating program type %q", nt.Name)
		}
		typeIDs[key(mt.Name)] = mt.ID
		types.add(true)
	}

	taxIDs := make(map[string]string)
	existingTaxes, err := cli.catSvc.QueryTaxes(ctx, catalog.TaxFilter{}, nil)
	if err != nil {
		return errors.Wrap(err, "querying taxes")
	}
	for _, t := range existingTaxes {
		taxIDs[key(t.Name)] = t.ID
	}
	for _, st := range sf.Taxes {
		nt := catalog.NewTax{Name: st.Name, Amount: money.Money(st.Amount), Description: st.Description}
		if err = nt.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "tax %q", st.Name)
		}
		if _, ok := taxIDs[key(nt.Name)]; ok {
			taxes.add(false)
			continue
		}
		t, err := cli.catSvc.CreateTax(ctx, nt)
		if err != nil {
			return errors.Wrapf(err, "creating tax %q", nt.Name)
		}
		taxIDs[key(t.Name)] = t.ID
		taxes.add(true)
	}

	for _, sm := range sf.Majors {
		typeID, ok := typeIDs[key(sm.Type)]
		if !ok {
			return errors.Errorf("major %q: unknown program type %q", sm.Name, sm.Type)
		}
		nm := catalog.NewMajor{
			Name:        sm.Name,
			MajorTypeID: typeID,
			Price:       money.Money(sm.Price),
			Duration:    sm.Duration,
			Description: sm.Description,
		}
		if err = nm.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "major %q", sm.Name)
		}

		majorTaxes := make([]string, 0, len(sm.Taxes))
		for _, name := range sm.Taxes {
			taxID, ok := taxIDs[key(name)]
			if !ok {
				return errors.Errorf("major %q: unknown tax %q", sm.Name, name)
			}
			majorTaxes = append(majorTaxes, taxID)
		}

		m, found, err := cli.findMajor(ctx, typeID, nm.Name)
		if err != nil {
			return err
		}
		if !found {
			if m, err = cli.catSvc.CreateMajor(ctx, nm); err != nil {
				return errors.Wrapf(err, "creating major %q", nm.Name)
			}
		}
		majors.add(!found)

		for _, taxID := range majorTaxes {
			if err = cli.catSvc.AssociateTax(ctx, m.ID, taxID); err != nil {
				return errors.Wrapf(err, "applying taxes to major %q", sm.Name)
			}
		}
	}

	fmt.Fprintf(out, "program types: %d created, %d kept\n", types.created, types.kept)
	fmt.Fprintf(out, "taxes: %d created, %d kept\n", taxes.created, taxes.kept)
	fmt.Fprintf(out, "majors: %d created, %d kept\n", majors.created, majors.kept)
	return nil
}

func (cli *commandLine) findMajor(ctx context.Context, typeID, name string) (catalog.Major, bool, error) {
	ms, err := cli.catSvc.QueryMajors(ctx, catalog.MajorFilter{MajorTypeID: typeID}, nil)
	if err != nil {
		return catalog.Major{}, false, errors.Wrap(err, "querying majors")
	}
	for _, m := range ms {
		if key(m.Name) == key(name) {
			return m, true, nil
		}
	}
	return catalog.Major{}, false, nil
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }
