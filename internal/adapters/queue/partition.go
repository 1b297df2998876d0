package queue

import (
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/cespare/xxhash/v2"
)

// PartitionFor maps a device onto one of n partitions. The mapping only
// depends on the device ID, so every message of a device lands on the same
// partition and keeps its order.
func PartitionFor(deviceID model.DeviceID, partitions int) int {
	if partitions <= 1 {
		return 0
	}

	return int(xxhash.Sum64String(deviceID.String()) % uint64(partitions))
}
