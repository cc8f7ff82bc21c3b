package codec

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"clanstore/internal/domain"
)

// YAMLCodec handles YAML import/export
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType returns the MIME type of the encoding
func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

// yamlSnapshot represents the YAML document layout. Identifiers are plain
// strings so hand-written files stay readable.
type yamlSnapshot struct {
	Clans   []yamlClan   `yaml:"clans"`
	Claims  []yamlClaim  `yaml:"claims"`
	Members []yamlMember `yaml:"members"`
	Perms   []yamlPerm   `yaml:"perms"`
}

type yamlClan struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Outline     string `yaml:"outline,omitempty"`
}

type yamlClaim struct {
	ID     string             `yaml:"id"`
	ClanID string             `yaml:"clan"`
	World  string             `yaml:"world"`
	Box    domain.BoundingBox `yaml:"box,flow"`
}

type yamlMember struct {
	ID         string `yaml:"id"`
	ClanID     string `yaml:"clan,omitempty"`
	ClanPermID string `yaml:"clan_perm,omitempty"`
}

type yamlPerm struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	ClanID      string   `yaml:"clan,omitempty"`
	MemberID    string   `yaml:"member,omitempty"`
	BreakBlocks []string `yaml:"break_blocks,flow"`
	Whitelist   bool     `yaml:"whitelist"`
}

// Parse imports a snapshot from YAML. Clan relation sets are rebuilt from
// the claim and member entries; chunk keys are derived from claim boxes.
func (c *YAMLCodec) Parse(r io.Reader) (*domain.Snapshot, error) {
	var ys yamlSnapshot
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&ys); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	snapshot := domain.NewSnapshot()
	clans := make(map[uuid.UUID]*domain.Clan, len(ys.Clans))

	for _, yc := range ys.Clans {
		id, err := parseUUID("clan id", yc.ID)
		if err != nil {
			return nil, err
		}
		outline := domain.DefaultOutline
		if yc.Outline != "" {
			if outline, err = domain.ParseMaterial(yc.Outline); err != nil {
				return nil, fmt.Errorf("clan %s: %w", yc.ID, err)
			}
		}
		clan := &domain.Clan{
			ID:          id,
			Name:        yc.Name,
			Description: yc.Description,
			Outline:     outline,
			ClaimIDs:    []uuid.UUID{},
			MemberIDs:   []uuid.UUID{},
			PermIDs:     []uuid.UUID{},
		}
		clans[id] = clan
		snapshot.Clans = append(snapshot.Clans, clan)
	}

	for _, yc := range ys.Claims {
		id, err := parseUUID("claim id", yc.ID)
		if err != nil {
			return nil, err
		}
		clanID, err := parseUUID("claim clan", yc.ClanID)
		if err != nil {
			return nil, err
		}
		claim := domain.NewClaim(clanID, yc.World, yc.Box)
		claim.ID = id
		snapshot.Claims = append(snapshot.Claims, claim)
		if clan, ok := clans[clanID]; ok {
			clan.ClaimIDs = append(clan.ClaimIDs, id)
		}
	}

	for _, ym := range ys.Members {
		id, err := parseUUID("member id", ym.ID)
		if err != nil {
			return nil, err
		}
		member := domain.NewMember(id)
		if member.ClanID, err = parseOptionalUUID("member clan", ym.ClanID); err != nil {
			return nil, err
		}
		if member.ClanPermID, err = parseOptionalUUID("member clan perm", ym.ClanPermID); err != nil {
			return nil, err
		}
		snapshot.Members = append(snapshot.Members, member)
		if member.ClanID != nil {
			if clan, ok := clans[*member.ClanID]; ok {
				clan.MemberIDs = append(clan.MemberIDs, id)
			}
		}
	}

	for _, yp := range ys.Perms {
		id, err := parseUUID("perm id", yp.ID)
		if err != nil {
			return nil, err
		}
		perm := &domain.Perm{
			ID:                   id,
			Name:                 yp.Name,
			Description:          yp.Description,
			BreakBlocks:          make([]domain.Material, 0, len(yp.BreakBlocks)),
			BreakBlocksWhitelist: yp.Whitelist,
		}
		if perm.ClanID, err = parseOptionalUUID("perm clan", yp.ClanID); err != nil {
			return nil, err
		}
		if perm.MemberID, err = parseOptionalUUID("perm member", yp.MemberID); err != nil {
			return nil, err
		}
		for _, tok := range yp.BreakBlocks {
			m, err := domain.ParseMaterial(tok)
			if err != nil {
				return nil, fmt.Errorf("perm %s: %w", yp.ID, err)
			}
			perm.BreakBlocks = append(perm.BreakBlocks, m)
		}
		snapshot.Perms = append(snapshot.Perms, perm)
		if perm.ClanID != nil {
			if clan, ok := clans[*perm.ClanID]; ok {
				clan.PermIDs = append(clan.PermIDs, id)
			}
		}
	}

	for _, clan := range snapshot.Clans {
		clan.ClaimIDs = domain.SortIDs(clan.ClaimIDs)
		clan.MemberIDs = domain.SortIDs(clan.MemberIDs)
		clan.PermIDs = domain.SortIDs(clan.PermIDs)
	}
	return snapshot, nil
}

// Export exports a snapshot to YAML
func (c *YAMLCodec) Export(snapshot *domain.Snapshot, w io.Writer) error {
	ys := yamlSnapshot{
		Clans:   make([]yamlClan, 0, len(snapshot.Clans)),
		Claims:  make([]yamlClaim, 0, len(snapshot.Claims)),
		Members: make([]yamlMember, 0, len(snapshot.Members)),
		Perms:   make([]yamlPerm, 0, len(snapshot.Perms)),
	}

	for _, clan := range snapshot.Clans {
		ys.Clans = append(ys.Clans, yamlClan{
			ID:          clan.ID.String(),
			Name:        clan.Name,
			Description: clan.Description,
			Outline:     clan.Outline.String(),
		})
	}
	for _, claim := range snapshot.Claims {
		ys.Claims = append(ys.Claims, yamlClaim{
			ID:     claim.ID.String(),
			ClanID: claim.ClanID.String(),
			World:  claim.World,
			Box:    claim.Box,
		})
	}
	for _, member := range snapshot.Members {
		ys.Members = append(ys.Members, yamlMember{
			ID:         member.ID.String(),
			ClanID:     optionalString(member.ClanID),
			ClanPermID: optionalString(member.ClanPermID),
		})
	}
	for _, perm := range snapshot.Perms {
		yp := yamlPerm{
			ID:          perm.ID.String(),
			Name:        perm.Name,
			Description: perm.Description,
			ClanID:      optionalString(perm.ClanID),
			MemberID:    optionalString(perm.MemberID),
			BreakBlocks: make([]string, 0, len(perm.BreakBlocks)),
			Whitelist:   perm.BreakBlocksWhitelist,
		}
		for _, m := range perm.BreakBlocks {
			yp.BreakBlocks = append(yp.BreakBlocks, m.String())
		}
		ys.Perms = append(ys.Perms, yp)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&ys); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}

func parseUUID(what, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return id, nil
}

func parseOptionalUUID(what, s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseUUID(what, s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
