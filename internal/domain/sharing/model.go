package sharing

import (
	"time"

	"medical-consent/internal/domain/connections"
	"medical-consent/internal/domain/records"
)

// Grant es una entrada del allow-list explícito: hace visible exactamente
// UN record sobre UNA conexión. La clave es la pareja (connection, record);
// insertar dos veces el mismo par es un no-op.
type Grant struct {
	ConnectionID string
	RecordID     string
	CreatedAt    time.Time
}

// VisibleSet es la salida del motor de decisión de acceso.
// Mode indica cómo se resolvió: share-all (cero grants) o allow-list explícito.
type VisibleSet struct {
	Records []records.Record
	Mode    connections.ShareMode
}
