package gnark

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test"
)

func TestLocationProximityGroth16(t *testing.T) {
	assert := test.NewAssert(t)

	var locationCircuit LocationProximityCircuit

	_, err := frontend.Compile(ecc.BN254, backend.GROTH16, &locationCircuit)
	assert.NoError(err)

	{
		// 3 units east, 4 units north of target; 5^2 == 25 within bound
		var witness LocationProximityCircuit
		witness.Lat.Assign(1003)
		witness.Lon.Assign(2004)
		witness.TargetLat.Assign(1000)
		witness.TargetLon.Assign(2000)
		witness.MaxDistSq.Assign(25)

		assert.ProverSucceeded(&locationCircuit, &witness, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
	}

	{
		// exact match with a minimal bound
		var witness LocationProximityCircuit
		witness.Lat.Assign(1000)
		witness.Lon.Assign(2000)
		witness.TargetLat.Assign(1000)
		witness.TargetLon.Assign(2000)
		witness.MaxDistSq.Assign(1)

		assert.ProverSucceeded(&locationCircuit, &witness, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
	}

	{
		// one unit outside the bound
		var witness LocationProximityCircuit
		witness.Lat.Assign(1003)
		witness.Lon.Assign(2004)
		witness.TargetLat.Assign(1000)
		witness.TargetLon.Assign(2000)
		witness.MaxDistSq.Assign(24)

		assert.ProverFailed(&locationCircuit, &witness, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
	}

	{
		// witness west/south of the target squares back to the same distance
		var witness LocationProximityCircuit
		witness.Lat.Assign(997)
		witness.Lon.Assign(1996)
		witness.TargetLat.Assign(1000)
		witness.TargetLon.Assign(2000)
		witness.MaxDistSq.Assign(25)

		assert.ProverSucceeded(&locationCircuit, &witness, test.WithCurves(ecc.BN254), test.WithBackends(backend.GROTH16))
	}
}
