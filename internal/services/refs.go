package services

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// RefGenerator hands out reservation references for receipts that arrive without one
type RefGenerator interface {
	ReceiptRef() string
	ImportRef(row int) string
	ScrapRef(consumptionID uuid.UUID) string
}

type snowflakeRefs struct {
	node *snowflake.Node
}

// NewRefGenerator needs a node id unique per running instance (0-1023)
func NewRefGenerator(nodeID int64) (RefGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &snowflakeRefs{node: node}, nil
}

func (g *snowflakeRefs) ReceiptRef() string {
	return "RCV-" + g.node.Generate().String()
}

func (g *snowflakeRefs) ImportRef(row int) string {
	return fmt.Sprintf("IMPORT-%d-%d", time.Now().UnixMilli(), row)
}

func (g *snowflakeRefs) ScrapRef(consumptionID uuid.UUID) string {
	return "SCRAP-" + consumptionID.String()
}
