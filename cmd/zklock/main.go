package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/distworks/mutexkit/cluster/zookeeper"

	"github.com/jamiealquiza/envy"
)

// zklock acquires the ZooKeeper-backed lock, holds it, and releases it. It's
// a smoke tool for exercising the lock recipe against a live ZooKeeper.
func main() {
	zkAddr := flag.String("zk-addr", "localhost:2181", "ZooKeeper connect string")
	path := flag.String("path", "/mutexkit/locks", "ZooKeeper locking path")
	wait := flag.Duration("wait", 30*time.Second, "Max time to wait for the lock")
	hold := flag.Duration("hold", 3*time.Second, "How long to hold the lock")

	envy.Parse("ZKLOCK")
	flag.Parse()

	lock, err := zookeeper.NewZooKeeperLock(zookeeper.ZooKeeperLockConfig{
		Address: *zkAddr,
		Path:    *path,
	})
	exitOnErr(err)

	defer lock.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()

	exitOnErr(lock.Lock(ctx))
	fmt.Printf("lock acquired at %s, holding for %s\n", *path, *hold)

	time.Sleep(*hold)

	exitOnErr(lock.Unlock(ctx))
	fmt.Println("lock released")
}

func exitOnErr(e error) {
	if e != nil {
		fmt.Println(e)
		os.Exit(1)
	}
}
