package sh

import (
	"context"
	"strings"

	"github.com/robotalks/subbus/pkg/board"
	"github.com/robotalks/subbus/pkg/cancomm"
)

// descChunk is the number of words read per request.
const descChunk = 50

// ReadDescription drains the description FIFO of a board.
func ReadDescription(ctx context.Context, c *cancomm.Client) (string, error) {
	var sb strings.Builder
	for {
		words, err := c.ReadCountNoInc(ctx, descChunk, byte(board.DescCountAddr), byte(board.DescDataAddr))
		if err != nil {
			return "", err
		}
		if len(words) == 0 {
			break
		}
		for _, w := range words {
			sb.WriteByte(byte(w))
			sb.WriteByte(byte(w >> 8))
		}
	}
	return strings.TrimRight(sb.String(), "\x00"), nil
}
