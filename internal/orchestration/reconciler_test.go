package orchestration_test

import (
	"context"
	"os"
	"path/filepath"

	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/dblab/internal/config"
	"github.com/imamik/dblab/internal/orchestration"
	"github.com/imamik/dblab/internal/provisioning"
	"github.com/imamik/dblab/internal/state"
	testutil "github.com/imamik/dblab/internal/testing"
	"github.com/imamik/dblab/internal/util/naming"
)

var _ = Describe("Reconciler", func() {
	var (
		ctx     context.Context
		cloud   *testutil.CloudFixture
		cluster *testutil.ClusterFixture
	)

	newCluster := func(b *testutil.TopologyBuilder) {
		cluster = testutil.NewClusterFixture(GinkgoT(), b.Build())
	}

	reconciler := func() *orchestration.Reconciler {
		return orchestration.NewReconciler(cluster.Store, cloud.Client,
			orchestration.WithObserver(cluster.Observer),
			orchestration.WithTimeouts(config.TestTimeouts()),
			orchestration.WithMetrics(cloud.Metrics),
		)
	}

	clusterID := func() string {
		return cluster.Recorder.Snapshot().ClusterID
	}

	BeforeEach(func() {
		ctx = context.Background()
		cloud = testutil.NewCloudFixture(GinkgoT(), "us-west-2").WithDefaultImage()
	})

	Context("with a fresh three-zone topology", func() {
		BeforeEach(func() {
			newCluster(testutil.NewTopologyBuilder().
				WithZones("a", "b", "c").
				WithRole(config.RoleDB, "c5.2xlarge", 3).
				WithRole(config.RoleApp, "c5.xlarge", 1))
		})

		It("provisions every role and marks the infrastructure up", func() {
			result, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.OK()).To(BeTrue())
			Expect(result.Hosts[config.RoleDB]).To(HaveLen(3))
			Expect(result.Hosts[config.RoleApp]).To(HaveLen(1))

			saved := cluster.Reload(GinkgoT())
			Expect(saved.InfrastructureUp).To(BeTrue())
			Expect(saved.Networking.Ready()).To(BeTrue())
			Expect(saved.Identity.InstanceProfileName).NotTo(BeEmpty())
			Expect(saved.Hosts[config.RoleDB][0].Alias).To(Equal("db0"))
			Expect(saved.Hosts[config.RoleDB][0].AvailabilityZone).To(Equal("us-west-2a"))
			Expect(saved.Hosts[config.RoleDB][1].AvailabilityZone).To(Equal("us-west-2b"))
			Expect(saved.Hosts[config.RoleDB][2].AvailabilityZone).To(Equal("us-west-2c"))
		})

		It("is idempotent", func() {
			first, err := reconciler().Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())
			creates := cloud.EC2.CreateCalls()
			launches := cloud.EC2.Calls("RunInstances")

			second, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(second.OK()).To(BeTrue())
			Expect(cloud.EC2.CreateCalls()).To(Equal(creates))
			Expect(cloud.EC2.Calls("RunInstances")).To(Equal(launches))
			Expect(second.Hosts).To(Equal(first.Hosts))
		})

		It("logs the unit state machine", func() {
			_, err := reconciler().Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())

			var transitions []string
			for _, e := range cluster.Observer.EventsOfType(provisioning.EventUnitTransition) {
				if e.Phase == "db" {
					transitions = append(transitions, e.Fields["to"])
				}
			}
			Expect(transitions).To(Equal([]string{"PENDING", "IN_PROGRESS", "SUCCEEDED"}))
		})

		It("mirrors the checkpoint into the cluster bucket", func() {
			_, err := reconciler().Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())

			key := state.BucketName(clusterID()) + "/" + naming.CheckpointKey
			Expect(cloud.S3.Objects).To(HaveKey(key))
			mirrored, err := state.Unmarshal(cloud.S3.Objects[key])
			Expect(err).NotTo(HaveOccurred())
			Expect(mirrored.ClusterID).To(Equal(clusterID()))
		})

		It("leaves only the complete checkpoint on disk", func() {
			_, err := reconciler().Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())

			entries, err := os.ReadDir(filepath.Dir(cluster.Path))
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Name()).To(Equal(state.DefaultFilename))

			data, err := os.ReadFile(cluster.Path)
			Expect(err).NotTo(HaveOccurred())
			_, err = state.Unmarshal(data)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("when adding instances", func() {
		BeforeEach(func() {
			newCluster(testutil.NewTopologyBuilder().
				WithZones("a", "b", "c").
				WithRole(config.RoleDB, "c5.2xlarge", 1))
		})

		It("continues the ordinal sequence across zones", func() {
			first, err := reconciler().Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())
			db0 := first.Hosts[config.RoleDB][0]
			Expect(db0.Alias).To(Equal("db0"))
			Expect(db0.AvailabilityZone).To(Equal("us-west-2a"))

			result, err := reconciler().AddInstances(ctx, config.RoleDB, 2)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.OK()).To(BeTrue())
			hosts := result.Hosts[config.RoleDB]
			Expect(hosts).To(HaveLen(3))
			Expect(hosts[0]).To(Equal(db0))
			Expect(hosts[1].Alias).To(Equal("db1"))
			Expect(hosts[1].AvailabilityZone).To(Equal("us-west-2b"))
			Expect(hosts[2].Alias).To(Equal("db2"))
			Expect(hosts[2].AvailabilityZone).To(Equal("us-west-2c"))
			Expect(cluster.Reload(GinkgoT()).Topology.Count(config.RoleDB)).To(Equal(3))
		})

		It("rejects unknown roles and non-positive counts", func() {
			_, err := reconciler().AddInstances(ctx, config.Role("cache"), 1)
			Expect(err).To(MatchError(ContainSubstring("unknown role")))

			_, err = reconciler().AddInstances(ctx, config.RoleDB, 0)
			Expect(err).To(MatchError(ContainSubstring("count must be positive")))
		})

		It("requires an instance type for roles missing from the topology", func() {
			_, err := reconciler().AddInstances(ctx, config.RoleControl, 1)
			Expect(err).To(MatchError(ContainSubstring("no instance type")))
		})
	})

	Context("with instances already in the cloud", func() {
		BeforeEach(func() {
			newCluster(testutil.NewTopologyBuilder().
				WithZones("a", "b").
				WithRole(config.RoleDB, "c5.2xlarge", 2))
		})

		It("adopts this cluster's hosts and ignores foreign ones", func() {
			cloud.EC2.AddInstance(testutil.TaggedInstance(clusterID(), "db", "db0", "us-west-2a", ec2types.InstanceStateNameRunning))
			cloud.EC2.AddInstance(testutil.TaggedInstance("other-cluster", "db", "db1", "us-west-2b", ec2types.InstanceStateNameRunning))
			cloud.EC2.AddInstance(testutil.TaggedInstance(clusterID(), "db", "db5", "us-west-2a", ec2types.InstanceStateNameTerminated))

			result, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.OK()).To(BeTrue())
			Expect(cloud.EC2.Calls("RunInstances")).To(Equal(1))
			hosts := result.Hosts[config.RoleDB]
			Expect(hosts).To(HaveLen(2))
			Expect(hosts[0].Alias).To(Equal("db0"))
			Expect(hosts[0].PublicIP).To(Equal("54.0.0.10"))
			Expect(hosts[1].Alias).To(Equal("db1"))
			Expect(hosts[1].AvailabilityZone).To(Equal("us-west-2b"))
		})
	})

	Context("when one unit fails", func() {
		BeforeEach(func() {
			newCluster(testutil.NewTopologyBuilder().
				WithZones("a", "b").
				WithRole(config.RoleDB, "c5.2xlarge", 2).
				WithEMR())
			cloud.EMR.FailNext("RunJobFlow", &smithy.GenericAPIError{Code: "ValidationException", Message: "bad release"})
		})

		It("keeps the other units and reports the failure", func() {
			result, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.OK()).To(BeFalse())
			Expect(result.Failures).To(HaveLen(1))
			Expect(result.Failures[0].Key).To(Equal("emr"))
			Expect(result.Failures[0].Kind).To(Equal(orchestration.UnitService))
			Expect(result.Failures[0].Message).To(ContainSubstring("bad release"))
			Expect(result.Hosts[config.RoleDB]).To(HaveLen(2))

			saved := cluster.Reload(GinkgoT())
			Expect(saved.Hosts[config.RoleDB]).To(HaveLen(2))
			Expect(saved.InfrastructureUp).To(BeFalse())
		})

		It("completes the missing unit on the next run", func() {
			_, err := reconciler().Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())

			result, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.OK()).To(BeTrue())
			Expect(result.Services).To(HaveKey(state.ServiceEMR))
			Expect(cloud.EC2.Calls("RunInstances")).To(Equal(2))
			Expect(cluster.Reload(GinkgoT()).InfrastructureUp).To(BeTrue())
		})
	})

	Context("when a host is terminated out of band", func() {
		var db1 state.HostRecord

		BeforeEach(func() {
			newCluster(testutil.NewTopologyBuilder().
				WithZones("a", "b", "c").
				WithRole(config.RoleDB, "c5.2xlarge", 3))
			first, err := reconciler().Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.OK()).To(BeTrue())
			db1 = first.Hosts[config.RoleDB][1]
			Expect(db1.Alias).To(Equal("db1"))
			cloud.EC2.SetInstanceState(db1.InstanceID, ec2types.InstanceStateNameTerminated)
		})

		It("replaces the host under a new client token", func() {
			result, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.OK()).To(BeTrue())
			hosts := result.Hosts[config.RoleDB]
			Expect(hosts).To(HaveLen(3))
			Expect(hosts[1].Alias).To(Equal("db1"))
			Expect(hosts[1].AvailabilityZone).To(Equal("us-west-2b"))
			Expect(hosts[1].InstanceID).NotTo(Equal(db1.InstanceID))
			Expect(cloud.EC2.Calls("RunInstances")).To(Equal(5))

			saved := cluster.Reload(GinkgoT())
			Expect(saved.InfrastructureUp).To(BeTrue())
			Expect(saved.Hosts[config.RoleDB][1].InstanceID).To(Equal(hosts[1].InstanceID))
		})

		It("keeps the replacement on later runs", func() {
			replaced, err := reconciler().Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())

			again, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(again.OK()).To(BeTrue())
			Expect(again.Hosts).To(Equal(replaced.Hosts))
			Expect(cloud.EC2.Instances).To(HaveLen(4))
		})

		It("clears infrastructure_up when the replacement fails", func() {
			Expect(cluster.Reload(GinkgoT()).InfrastructureUp).To(BeTrue())
			cloud.EC2.FailNext("RunInstances", &smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "bad subnet"})

			result, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.OK()).To(BeFalse())
			Expect(result.Failures[0].Key).To(Equal("db"))

			saved := cluster.Reload(GinkgoT())
			Expect(saved.InfrastructureUp).To(BeFalse())
			Expect(saved.Hosts[config.RoleDB]).To(HaveLen(2))
		})
	})

	Context("when one role keeps hitting retryable launch errors", func() {
		BeforeEach(func() {
			newCluster(testutil.NewTopologyBuilder().
				WithZones("a", "b").
				WithRole(config.RoleDB, "c5.2xlarge", 1).
				WithRole(config.RoleApp, "c5.xlarge", 2))
			attempts := config.TestTimeouts().RetryMaxAttempts + 1
			errs := make([]error, attempts)
			for i := range errs {
				errs[i] = &smithy.GenericAPIError{Code: "InsufficientInstanceCapacity", Message: "no c5.2xlarge capacity"}
			}
			cloud.EC2.FailNextFor("RunInstances", "c5.2xlarge", errs...)
		})

		It("fails that role and checkpoints the other role's hosts", func() {
			result, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.OK()).To(BeFalse())
			Expect(result.Failures).To(HaveLen(1))
			Expect(result.Failures[0].Key).To(Equal("db"))
			Expect(result.Failures[0].Kind).To(Equal(orchestration.UnitRole))
			Expect(result.Failures[0].Message).To(ContainSubstring("InsufficientInstanceCapacity"))
			Expect(result.Hosts[config.RoleApp]).To(HaveLen(2))

			saved := cluster.Reload(GinkgoT())
			Expect(saved.Hosts[config.RoleApp]).To(HaveLen(2))
			Expect(saved.Hosts[config.RoleDB]).To(BeEmpty())
			Expect(saved.InfrastructureUp).To(BeFalse())
		})

		It("launches the failed role on the next run", func() {
			_, err := reconciler().Reconcile(ctx)
			Expect(err).NotTo(HaveOccurred())

			result, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.OK()).To(BeTrue())
			Expect(result.Hosts[config.RoleDB]).To(HaveLen(1))
			Expect(cluster.Reload(GinkgoT()).InfrastructureUp).To(BeTrue())
		})
	})

	Context("with an image of the wrong architecture", func() {
		BeforeEach(func() {
			newCluster(testutil.NewTopologyBuilder().
				WithArch(config.ArchARM64).
				WithImageID("ami-default").
				WithRole(config.RoleDB, "c6g.xlarge", 2))
		})

		It("fails the role unit without launching anything", func() {
			result, err := reconciler().Reconcile(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Failures).To(HaveLen(1))
			Expect(result.Failures[0].Key).To(Equal("db"))
			Expect(result.Failures[0].Message).To(ContainSubstring("architecture"))
			Expect(cloud.EC2.Calls("RunInstances")).To(BeZero())
		})
	})

	Context("when networking cannot be set up", func() {
		BeforeEach(func() {
			newCluster(testutil.NewTopologyBuilder())
			cloud.EC2.SkipMainRouteTable = true
		})

		It("stops before any unit starts", func() {
			result, err := reconciler().Reconcile(ctx)

			Expect(err).To(HaveOccurred())
			Expect(result).To(BeNil())
			Expect(cloud.EC2.Calls("RunInstances")).To(BeZero())
			Expect(cluster.Reload(GinkgoT()).InfrastructureUp).To(BeFalse())
		})
	})

	Context("without a checkpoint", func() {
		It("refuses to run", func() {
			store := state.NewFileStore(filepath.Join(GinkgoT().TempDir(), "state.yaml"))

			_, err := orchestration.NewReconciler(store, cloud.Client).Reconcile(ctx)

			Expect(err).To(MatchError(orchestration.ErrNotInitialized))
		})
	})
})

var _ = Describe("Initialize", func() {
	It("mints an identity once", func() {
		store := state.NewFileStore(filepath.Join(GinkgoT().TempDir(), "state.yaml"))
		topo := testutil.NewTopologyBuilder().Build()

		cs, err := orchestration.Initialize(store, topo, fixedNow)
		Expect(err).NotTo(HaveOccurred())
		Expect(cs.ClusterID).NotTo(BeEmpty())
		Expect(cs.Bucket).To(Equal(state.BucketName(cs.ClusterID)))

		_, err = orchestration.Initialize(store, topo, fixedNow)
		Expect(err).To(MatchError(orchestration.ErrAlreadyInitialized))

		loaded, err := store.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.ClusterID).To(Equal(cs.ClusterID))
	})

	It("rejects an invalid topology", func() {
		store := state.NewFileStore(filepath.Join(GinkgoT().TempDir(), "state.yaml"))
		topo := testutil.NewTopologyBuilder().WithRegion("").Build()

		_, err := orchestration.Initialize(store, topo, fixedNow)

		Expect(err).To(MatchError(ContainSubstring("validation failed")))
	})
})
